package collaborator

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/shopspring/decimal"
)

// Credentials are passed explicitly into every collaborator request.
type Credentials struct {
	UserID      string
	BearerToken string
}

// Storefront is the contract the orchestrator consumes from the storefront backend.
type Storefront interface {
	GetCart(ctx context.Context, creds Credentials) (*Cart, error)
	ListOffers(ctx context.Context, creds Credentials) ([]domain.Offer, error)
	SubmitCheckout(ctx context.Context, creds Credentials, req SubmitRequest) (*SubmitResponse, error)
	RetryCheckout(ctx context.Context, creds Credentials, req RetryRequest) (*RetryResponse, error)
	FetchStoreSlots(ctx context.Context, creds Credentials) ([]domain.StoreSlot, error)
	ConfirmSlot(ctx context.Context, creds Credentials, req ConfirmSlotRequest) (*ConfirmSlotResponse, error)
}

// ID accepts both numeric and string identifiers on the wire.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type Product struct {
	ID       ID              `json:"id"`
	PID      string          `json:"pid"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

type CartItem struct {
	ID       ID              `json:"id"`
	Product  Product         `json:"product"`
	Size     string          `json:"size"`
	Quantity int32           `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type SubmitRequest struct {
	OrderType     domain.OrderType     `json:"order_type"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	OfferID       *int64               `json:"offer_id"`
}

type RetryRequest struct {
	OrderID       ID                   `json:"order_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

type ConfirmSlotRequest struct {
	OrderID ID     `json:"order_id"`
	SlotID  string `json:"slot_id"`
}

type Order struct {
	ID            ID              `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Total         decimal.Decimal `json:"total"`
	Discount      decimal.Decimal `json:"discount"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
}

func (o *Order) Ref() *domain.OrderRef {
	return &domain.OrderRef{
		ID:            string(o.ID),
		OrderNumber:   o.OrderNumber,
		Total:         o.Total,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	}
}

type Payment struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	CanRetry        bool   `json:"can_retry"`
	RedirectToStore bool   `json:"redirect_to_store"`
	AttemptNumber   int    `json:"attempt_number,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
}

type Delivery struct {
	EstimatedDate string `json:"estimated_date"`
}

type SubmitResponse struct {
	Success    bool               `json:"success"`
	Order      *Order             `json:"order,omitempty"`
	AIMessage  string             `json:"ai_message,omitempty"`
	StoreSlots []domain.StoreSlot `json:"store_slots,omitempty"`
	Payment    *Payment           `json:"payment,omitempty"`
	Delivery   *Delivery          `json:"delivery,omitempty"`
}

type RetryResponse struct {
	Success bool     `json:"success"`
	Payment *Payment `json:"payment,omitempty"`
}

type ConfirmSlotResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	PickupSlot string `json:"pickup_slot,omitempty"`
}

// StatusError is a non-retryable HTTP error answer (4xx other than 408/429).
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return e.Op + ": unexpected status " + strconv.Itoa(e.Code)
	}
	return e.Op + ": " + strings.TrimSpace(e.Detail)
}
