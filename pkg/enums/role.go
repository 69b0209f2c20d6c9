package enums

import "fmt"

// Role is the single authoritative access level of an actor.
type Role string

const (
	RoleClient   Role = "client"
	RoleCourier  Role = "courier"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{
	RoleClient,
	RoleCourier,
	RoleOperator,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may supervise any order (operator or admin).
func (r Role) IsStaff() bool {
	return r == RoleOperator || r == RoleAdmin
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
