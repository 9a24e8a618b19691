// Package discount prices a cart against an optional bank offer.
//
// Amounts are rounded to cents with round-half-to-even (banker's rounding), so
// 12.345 becomes 12.34 and 12.355 becomes 12.36.
package discount

import (
	"github.com/fjod/storefront-checkout/domain"
	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places kept for currency amounts.
const MinorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns min(cartTotal * percent / 100, maxDiscount) rounded to
// cents. A nil offer yields zero. The offer's MinOrder is not checked here.
func ComputeDiscount(cartTotal decimal.Decimal, offer *domain.Offer) decimal.Decimal {
	if offer == nil || !cartTotal.IsPositive() {
		return decimal.Zero
	}

	percent := clamp(offer.DiscountPercent, decimal.Zero, hundred)
	maxDiscount := decimal.Max(offer.MaxDiscount, decimal.Zero)

	raw := cartTotal.Mul(percent).Div(hundred)
	discount := decimal.Min(raw, maxDiscount).RoundBank(MinorUnitPlaces)

	// rounding must not push the discount past the cap or the total
	return clamp(discount, decimal.Zero, decimal.Min(cartTotal, maxDiscount))
}

// Quote computes the discount and the final total for a cart total.
func Quote(cartTotal decimal.Decimal, offer *domain.Offer) domain.Pricing {
	discount := ComputeDiscount(cartTotal, offer)
	return domain.Pricing{
		OriginalTotal: cartTotal,
		Discount:      discount,
		FinalTotal:    cartTotal.Sub(discount),
	}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
