package enums

// DraftState is the conversational step of an order being composed.
type DraftState string

const (
	DraftWaitingCustomBags DraftState = "waiting_custom_bags"
	DraftWaitingAddress    DraftState = "waiting_address"
)

func (d DraftState) String() string {
	return string(d)
}
