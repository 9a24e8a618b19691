package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/shopspring/decimal"
)

const currency = "INR"

func (s *CheckoutServiceImpl) getCart(ctx context.Context, creds collaborator.Credentials) (domain.CartSnapshot, error) {
	cart, err := s.cart.GetCart(ctx, creds)
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("failed to get cart: %w", err)
	}

	snapshot := buildCartSnapshot(cart, s.clock.Now())
	if err := snapshot.Validate(); err != nil {
		return domain.CartSnapshot{}, err
	}
	return snapshot, nil
}

// buildCartSnapshot captures the cart as it is at checkout entry. Items without a
// subtotal are priced from the product's unit price.
func buildCartSnapshot(cart *collaborator.Cart, now time.Time) domain.CartSnapshot {
	snapshot := domain.CartSnapshot{
		Items:      make([]domain.CartSnapshotItem, 0, len(cart.Items)),
		Total:      cart.Total,
		Currency:   currency,
		CapturedAt: now,
	}

	for _, item := range cart.Items {
		ref := item.Product.PID
		if ref == "" {
			ref = string(item.Product.ID)
		}
		subtotal := item.Subtotal
		if subtotal.IsZero() {
			subtotal = item.Product.Price.Mul(decimal.NewFromInt32(item.Quantity))
		}

		snapshot.Items = append(snapshot.Items, domain.CartSnapshotItem{
			ProductRef: ref,
			Title:      item.Product.Title,
			Size:       item.Size,
			Quantity:   item.Quantity,
			UnitPrice:  item.Product.Price,
			Subtotal:   subtotal,
		})
	}
	return snapshot
}
