package domain

type CheckoutState string

const (
	StateSelectingDeliveryType CheckoutState = "SELECTING_DELIVERY_TYPE"
	StateSelectingOffer        CheckoutState = "SELECTING_OFFER"
	StateSelectingPayment      CheckoutState = "SELECTING_PAYMENT"
	StateAwaitingPayment       CheckoutState = "AWAITING_PAYMENT_RESULT"
	StateSelectingStoreSlot    CheckoutState = "SELECTING_STORE_SLOT"
	StateCompleted             CheckoutState = "COMPLETED"
)

var transitions = map[CheckoutState][]CheckoutState{
	StateSelectingDeliveryType: {StateSelectingOffer},
	StateSelectingOffer:        {StateSelectingPayment},
	StateSelectingPayment:      {StateAwaitingPayment},
	StateAwaitingPayment:       {StateSelectingPayment, StateSelectingStoreSlot, StateCompleted},
	StateSelectingStoreSlot:    {StateSelectingStoreSlot, StateCompleted},
}

// CanTransitionTo reports whether the state machine has an edge from -> to.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == StateCompleted
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
