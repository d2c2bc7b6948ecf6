// README: Order aggregate, fulfillment state vocabulary and line substitution tags.
package order

import (
	"time"

	"fulfillments/internal/types"
)

type State string

// Host platform states. Orders in these states are never surfaced as tasks.
const (
	StateDraft             State = "Draft"
	StateAddingItems       State = "AddingItems"
	StateArrangingPayment  State = "ArrangingPayment"
	StatePaymentAuthorized State = "PaymentAuthorized"
	StatePaymentSettled    State = "PaymentSettled"
	StateShipped           State = "Shipped"
	StateCancelled         State = "Cancelled"
)

// Preparation lifecycle.
const (
	StateAwaitingPrep State = "AwaitingPrep"
	StatePreparing    State = "Preparing"
)

// Fulfillment lifecycle, delivery and collection branches.
const (
	StateReadyForDelivery   State = "ReadyForDelivery"
	StateOutForDelivery     State = "OutForDelivery"
	StateDelivered          State = "Delivered"
	StateCouldNotDeliver    State = "CouldNotDeliver"
	StateReadyForCollection State = "ReadyForCollection"
	StateCollected          State = "Collected"
	StateNoCollection       State = "NoCollection"
	StatePartialRefund      State = "PartialRefund"
)

// ExcludedStates are removed from every task and route query regardless of the
// rule's own state filter.
var ExcludedStates = []State{
	StateDraft,
	StateAddingItems,
	StateArrangingPayment,
	StatePaymentAuthorized,
	StatePaymentSettled,
	StateShipped,
	StateCancelled,
}

type SubstitutionState string

const (
	SubstitutionNone     SubstitutionState = ""
	SubstitutionAccepted SubstitutionState = "accepted"
	SubstitutionRejected SubstitutionState = "rejected"
	SubstitutionRemoved  SubstitutionState = "removed"
)

type Line struct {
	ID                types.ID
	ProductName       string
	Quantity          int
	SubstitutionState SubstitutionState
}

// NeedsRefund reports whether the customer turned the substitution down.
func (l Line) NeedsRefund() bool {
	return l.SubstitutionState == SubstitutionRejected || l.SubstitutionState == SubstitutionRemoved
}

type Order struct {
	ID                       types.ID
	Code                     string
	ChannelID                types.ID
	State                    State
	StateVersion             int
	IsDelivery               bool
	DeliveryOrCollectionDate time.Time
	TimeSlot                 string
	OrderNote                string
	RescheduleReason         string
	Review                   *int
	GooglePlaceID            string
	TotalWithTax             types.Money
	OrderPlacedAt            *time.Time
	Lines                    []Line
}

type Event struct {
	ID        string
	OrderID   types.ID
	OrderCode string
	ChannelID types.ID
	FromState State
	ToState   State
	ActorType string
	Reason    string
	CreatedAt time.Time
}
