package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/discount"
	"github.com/fjod/storefront-checkout/internal/offers"
)

// SelectOffer applies an offer to the cart, or clears the selection when offerID
// is nil, and recomputes pricing. An offer whose minimum order is above the cart
// total cannot be selected.
func (o *Orchestrator) SelectOffer(ctx context.Context, creds collaborator.Credentials, offerID *int64) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked("select_offer", domain.StateSelectingOffer); err != nil {
		return o.resultLocked(), err
	}

	if offerID == nil {
		o.session.SelectedOfferID = nil
		o.session.Pricing = discount.Quote(o.session.Cart.Total, nil)
		o.transitionLocked(domain.StateSelectingPayment)
		o.log("select_offer", "no_offer", nil)
		return o.resultLocked(), nil
	}

	o.inFlight = true
	defer func() { o.inFlight = false }()

	var offer *domain.Offer
	var err error
	o.callUnlocked(func() {
		offer, err = o.offers.Find(ctx, creds, *offerID)
	})
	if o.closed {
		o.log("select_offer", "discarded", err)
		return o.resultLocked(), domain.ErrSessionClosed
	}

	switch {
	case errors.Is(err, offers.ErrOfferNotFound):
		return o.resultLocked(), domain.NewValidationError("unknown_offer", fmt.Sprintf("offer %d does not exist", *offerID))
	case err != nil:
		o.log("select_offer", "error", err)
		return o.resultLocked(), err
	}
	if !offer.EligibleFor(o.session.Cart.Total) {
		return o.resultLocked(), domain.NewValidationError("offer_not_eligible",
			fmt.Sprintf("%s offer requires a minimum order of %s", offer.BankName, offer.MinOrder.StringFixed(2)))
	}

	id := offer.ID
	o.session.SelectedOfferID = &id
	o.session.Pricing = discount.Quote(o.session.Cart.Total, offer)
	o.transitionLocked(domain.StateSelectingPayment)
	o.log("select_offer", "ok", nil)
	return o.resultLocked(), nil
}
