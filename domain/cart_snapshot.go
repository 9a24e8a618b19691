package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type CartSnapshotItem struct {
	ProductRef string          `json:"product_ref"`
	Title      string          `json:"title"`
	Size       string          `json:"size"`
	Quantity   int32           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	Items      []CartSnapshotItem `json:"items"`
	Total      decimal.Decimal    `json:"total"`
	Currency   string             `json:"currency"`
	CapturedAt time.Time          `json:"captured_at"`
}

// Validate checks that the snapshot is non-empty and that Total is the sum of the item subtotals.
func (c *CartSnapshot) Validate() error {
	if len(c.Items) == 0 {
		return NewValidationError("empty_cart", "cart is empty, nothing to checkout")
	}
	sum := decimal.Zero
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return NewValidationError("invalid_quantity",
				fmt.Sprintf("item %s has non-positive quantity %d", item.ProductRef, item.Quantity))
		}
		if item.Subtotal.IsNegative() {
			return NewValidationError("invalid_subtotal",
				fmt.Sprintf("item %s has negative subtotal", item.ProductRef))
		}
		sum = sum.Add(item.Subtotal)
	}
	if !sum.Equal(c.Total) {
		return NewValidationError("cart_total_mismatch",
			fmt.Sprintf("cart total %s does not match item subtotals %s", c.Total, sum))
	}
	return nil
}
