package service

import (
	"context"
	"errors"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
)

const (
	slotFetchMessage   = "Pickup slots could not be loaded. Please refresh the slot list."
	slotConfirmMessage = "Pickup slot could not be confirmed. Please try again or choose another slot."
)

// RefreshStoreSlots replaces the slot list with a fresh one. A selection that is
// no longer offered is cleared.
func (o *Orchestrator) RefreshStoreSlots(ctx context.Context, creds collaborator.Credentials) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked("refresh_store_slots", domain.StateSelectingStoreSlot); err != nil {
		return o.resultLocked(), err
	}
	o.inFlight = true
	defer func() { o.inFlight = false }()

	var slots []domain.StoreSlot
	var err error
	o.callUnlocked(func() {
		slots, err = o.fulfillment.FetchSlots(ctx, creds)
	})
	if o.closed {
		o.log("refresh_store_slots", "discarded", err)
		return o.resultLocked(), domain.ErrSessionClosed
	}
	if err != nil {
		o.lastErr = domain.NewFailure(domain.FailureSlotFetch, slotFetchMessage, o.session.PaymentAttempts)
		o.log("refresh_store_slots", "error", err)
		return o.resultLocked(), nil
	}

	o.lastErr = nil
	o.setSlotsLocked(slots)
	o.transitionLocked(domain.StateSelectingStoreSlot)
	o.log("refresh_store_slots", "ok", nil)
	return o.resultLocked(), nil
}

// ConfirmSlot commits a pickup slot from the last fetched list. When the flow
// fell back to the store before any order existed, a pickup order is placed
// first.
func (o *Orchestrator) ConfirmSlot(ctx context.Context, creds collaborator.Credentials, slotID string) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked("confirm_slot", domain.StateSelectingStoreSlot); err != nil {
		return o.resultLocked(), err
	}
	if slotID == "" {
		return o.resultLocked(), domain.NewValidationError("missing_slot", "select a pickup slot first")
	}
	if !domain.ContainsSlot(o.session.StoreSlots, slotID) {
		return o.resultLocked(), domain.NewValidationError("unknown_slot", "pickup slot is not in the current slot list")
	}

	o.session.SelectedSlotID = slotID
	o.lastErr = nil
	o.inFlight = true
	defer func() { o.inFlight = false }()

	snap := o.session.Clone()
	var placed *collaborator.Order
	var confirmed *collaborator.ConfirmSlotResponse
	var err error
	o.callUnlocked(func() {
		if snap.Order == nil {
			placed, err = o.placePickupOrder(ctx, creds, snap)
			if err != nil {
				return
			}
			snap.Order = placed.Ref()
		}
		confirmed, err = o.fulfillment.ConfirmSlot(ctx, creds, collaborator.ConfirmSlotRequest{
			OrderID: collaborator.ID(snap.Order.ID),
			SlotID:  slotID,
		})
	})
	if o.closed {
		o.log("confirm_slot", "discarded", err)
		return o.resultLocked(), domain.ErrSessionClosed
	}

	if placed != nil {
		o.session.Order = placed.Ref()
		o.session.OrderType = domain.OrderTypeStore
	}
	if domain.IsFatal(err) {
		o.freezeLocked(err)
		return o.resultLocked(), err
	}
	if err != nil || confirmed == nil || !confirmed.Success {
		o.lastErr = domain.NewFailure(domain.FailureSlotConfirmation, confirmFailureMessage(confirmed, err), o.session.PaymentAttempts)
		o.session.UpdatedAt = o.clock.Now()
		o.log("confirm_slot", "error", err)
		return o.resultLocked(), nil
	}

	o.transitionLocked(domain.StateCompleted)
	o.log("confirm_slot", "completed", nil)
	return o.resultLocked(), nil
}

// placePickupOrder creates the store order a fallback flow still lacks.
func (o *Orchestrator) placePickupOrder(ctx context.Context, creds collaborator.Credentials, s domain.CheckoutSession) (*collaborator.Order, error) {
	resp, err := o.payment.Submit(ctx, creds, collaborator.SubmitRequest{
		OrderType:     domain.OrderTypeStore,
		PaymentMethod: s.PaymentMethod,
		OfferID:       s.SelectedOfferID,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := ""
		if resp.Payment != nil {
			msg = resp.Payment.Message
		}
		return nil, &collaborator.StatusError{Op: "submit_checkout", Detail: msg}
	}
	if resp.Order == nil || resp.Order.ID == "" {
		return nil, &domain.FatalInconsistency{Op: "submit_checkout", Missing: "order"}
	}
	return resp.Order, nil
}

func confirmFailureMessage(resp *collaborator.ConfirmSlotResponse, err error) string {
	var status *collaborator.StatusError
	switch {
	case errors.As(err, &status) && status.Detail != "":
		return status.Detail
	case err == nil && resp != nil && resp.Message != "":
		return resp.Message
	}
	return slotConfirmMessage
}

// setSlotsLocked replaces the slot list and drops a selection it no longer contains.
func (o *Orchestrator) setSlotsLocked(slots []domain.StoreSlot) {
	o.session.StoreSlots = slots
	if o.session.SelectedSlotID != "" && !domain.ContainsSlot(slots, o.session.SelectedSlotID) {
		o.session.SelectedSlotID = ""
	}
}
