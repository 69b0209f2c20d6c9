package enums

import (
	"fmt"
	"strings"
)

// SubscriptionType is the pickup cadence of a subscription.
type SubscriptionType string

const (
	SubscriptionDaily        SubscriptionType = "daily"
	SubscriptionAlternateDay SubscriptionType = "alternate_day"
)

// String implements fmt.Stringer.
func (s SubscriptionType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionType.
func (s SubscriptionType) IsValid() bool {
	return s == SubscriptionDaily || s == SubscriptionAlternateDay
}

// ParseSubscriptionType accepts the stored names plus the short "alternate" alias
// used in admin commands.
func ParseSubscriptionType(value string) (SubscriptionType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return SubscriptionDaily, nil
	case "alternate", "alternate_day":
		return SubscriptionAlternateDay, nil
	}
	return "", fmt.Errorf("invalid subscription type %q", value)
}
