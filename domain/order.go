package domain

import "github.com/shopspring/decimal"

type OrderType string

const (
	OrderTypeOnline OrderType = "online"
	OrderTypeStore  OrderType = "store"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeOnline || t == OrderTypeStore
}

type PaymentMethod string

const (
	PaymentMethodUPI PaymentMethod = "upi"
	PaymentMethodCOD PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodUPI || m == PaymentMethodCOD
}

// OrderRef is the display-only view of an order owned by the order service.
type OrderRef struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status,omitempty"`
}

// Pricing is the result of applying the selected offer to the cart total.
type Pricing struct {
	OriginalTotal decimal.Decimal `json:"original_total"`
	Discount      decimal.Decimal `json:"discount"`
	FinalTotal    decimal.Decimal `json:"final_total"`
}
