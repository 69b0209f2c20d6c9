package enums

// ApplicationStatus tracks a courier application decision.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

func (a ApplicationStatus) String() string {
	return string(a)
}
