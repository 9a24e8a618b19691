package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Offer is a bank-sponsored percentage discount with a cap and a minimum qualifying order value.
type Offer struct {
	ID              int64           `json:"id"`
	BankName        string          `json:"bank_name"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	MaxDiscount     decimal.Decimal `json:"max_discount"`
	MinOrder        decimal.Decimal `json:"min_order"`
	Description     string          `json:"description"`
}

func (o *Offer) Validate() error {
	if o.DiscountPercent.IsNegative() || o.DiscountPercent.GreaterThan(hundred) {
		return NewValidationError("invalid_offer", "discount percent must be between 0 and 100")
	}
	if o.MaxDiscount.IsNegative() {
		return NewValidationError("invalid_offer", "max discount must not be negative")
	}
	if o.MinOrder.IsNegative() {
		return NewValidationError("invalid_offer", "min order must not be negative")
	}
	return nil
}

// EligibleFor reports whether a cart total reaches the offer's minimum order value.
func (o *Offer) EligibleFor(total decimal.Decimal) bool {
	return total.GreaterThanOrEqual(o.MinOrder)
}
