package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxPaymentAttempts is the number of failed payment attempts after which the
// flow is forced to the store-pickup fallback.
const MaxPaymentAttempts = 2

type CheckoutSession struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	Cart             CartSnapshot  `json:"cart"`
	OrderType        OrderType     `json:"order_type"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	SelectedOfferID  *int64        `json:"selected_offer_id,omitempty"`
	Pricing          Pricing       `json:"pricing"`
	PaymentAttempts  int           `json:"payment_attempts"`
	State            CheckoutState `json:"state"`
	Order            *OrderRef     `json:"order,omitempty"`
	StoreSlots       []StoreSlot   `json:"store_slots,omitempty"`
	SelectedSlotID   string        `json:"selected_slot_id,omitempty"`
	DeliveryEstimate string        `json:"delivery_estimate,omitempty"`
	AgentMessage     string        `json:"agent_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewCheckoutSession starts a session at SelectingDeliveryType with online/upi defaults.
func NewCheckoutSession(id, userID string, cart CartSnapshot, now time.Time) *CheckoutSession {
	return &CheckoutSession{
		ID:            id,
		UserID:        userID,
		Cart:          cart,
		OrderType:     OrderTypeOnline,
		PaymentMethod: PaymentMethodUPI,
		Pricing: Pricing{
			OriginalTotal: cart.Total,
			Discount:      decimal.Zero,
			FinalTotal:    cart.Total,
		},
		State:     StateSelectingDeliveryType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *CheckoutSession) OrderID() string {
	if s.Order == nil {
		return ""
	}
	return s.Order.ID
}

// Clone returns a deep copy safe to hand out while the orchestrator keeps mutating s.
func (s *CheckoutSession) Clone() CheckoutSession {
	c := *s
	c.Cart.Items = append([]CartSnapshotItem(nil), s.Cart.Items...)
	c.StoreSlots = append([]StoreSlot(nil), s.StoreSlots...)
	if s.SelectedOfferID != nil {
		id := *s.SelectedOfferID
		c.SelectedOfferID = &id
	}
	if s.Order != nil {
		o := *s.Order
		c.Order = &o
	}
	return c
}
