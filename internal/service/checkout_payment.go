package service

import (
	"context"
	"errors"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
)

const (
	pathSubmit = "submit"
	pathRetry  = "retry"
)

// paymentOutcome is what a submit or retry call produced, before the policy is applied.
type paymentOutcome struct {
	path     string
	success  bool
	order    *collaborator.Order
	declined *domain.PaymentDeclined
	kind     domain.FailureKind
	fatal    error
	slots    []domain.StoreSlot
	agentMsg string
	estimate string
	status   string
}

// SubmitPayment places the order on first use and re-attempts payment on the
// existing order once one has been created by an earlier attempt.
func (o *Orchestrator) SubmitPayment(ctx context.Context, creds collaborator.Credentials, method domain.PaymentMethod) (Result, error) {
	return o.pay(ctx, creds, "submit_payment", method, false)
}

// RetryPayment re-attempts payment on the order created by an earlier attempt.
func (o *Orchestrator) RetryPayment(ctx context.Context, creds collaborator.Credentials, method domain.PaymentMethod) (Result, error) {
	return o.pay(ctx, creds, "retry_payment", method, true)
}

func (o *Orchestrator) pay(ctx context.Context, creds collaborator.Credentials, step string, method domain.PaymentMethod, requireOrder bool) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(step, domain.StateSelectingPayment); err != nil {
		return o.resultLocked(), err
	}
	if !method.Valid() {
		return o.resultLocked(), domain.NewValidationError("invalid_payment_method", "payment method must be upi or cod")
	}
	if requireOrder && o.session.Order == nil {
		return o.resultLocked(), domain.NewValidationError("missing_order", "no order to retry payment for")
	}

	o.session.PaymentMethod = method
	o.lastErr = nil
	o.transitionLocked(domain.StateAwaitingPayment)
	o.inFlight = true
	defer func() { o.inFlight = false }()

	snap := o.session.Clone()
	var out paymentOutcome
	o.callUnlocked(func() {
		if snap.Order == nil {
			out = o.submit(ctx, creds, snap)
		} else {
			out = o.retry(ctx, creds, snap)
		}
	})
	if o.closed {
		o.log(step, "discarded", nil)
		return o.resultLocked(), domain.ErrSessionClosed
	}
	return o.applyPaymentOutcomeLocked(ctx, creds, step, out)
}

func (o *Orchestrator) submit(ctx context.Context, creds collaborator.Credentials, s domain.CheckoutSession) paymentOutcome {
	out := paymentOutcome{path: pathSubmit}
	resp, err := o.payment.Submit(ctx, creds, collaborator.SubmitRequest{
		OrderType:     s.OrderType,
		PaymentMethod: s.PaymentMethod,
		OfferID:       s.SelectedOfferID,
	})
	if err != nil {
		return failedCall(out, err)
	}

	out.order = resp.Order
	out.agentMsg = resp.AIMessage
	out.slots = resp.StoreSlots
	if resp.Delivery != nil {
		out.estimate = resp.Delivery.EstimatedDate
	}
	if resp.Payment != nil {
		out.status = resp.Payment.Status
	}
	if !resp.Success {
		return declined(out, resp.Payment)
	}
	if resp.Order == nil || resp.Order.ID == "" {
		out.fatal = &domain.FatalInconsistency{Op: "submit_checkout", Missing: "order"}
		return out
	}
	out.success = true
	return out
}

func (o *Orchestrator) retry(ctx context.Context, creds collaborator.Credentials, s domain.CheckoutSession) paymentOutcome {
	out := paymentOutcome{path: pathRetry}
	resp, err := o.payment.Retry(ctx, creds, collaborator.RetryRequest{
		OrderID:       collaborator.ID(s.Order.ID),
		PaymentMethod: s.PaymentMethod,
	})
	if err != nil {
		return failedCall(out, err)
	}
	if resp.Payment != nil {
		out.status = resp.Payment.Status
	}
	if !resp.Success {
		return declined(out, resp.Payment)
	}
	out.success = true
	return out
}

// failedCall maps a collaborator error onto the payment policy. A rejected
// request is treated as a decline carrying the collaborator's reason.
func failedCall(out paymentOutcome, err error) paymentOutcome {
	var status *collaborator.StatusError
	if errors.As(err, &status) {
		out.kind = domain.FailurePaymentDeclined
		out.declined = &domain.PaymentDeclined{Message: status.Detail}
		return out
	}
	out.kind = domain.FailureTransport
	out.declined = &domain.PaymentDeclined{CanRetry: true}
	return out
}

func declined(out paymentOutcome, p *collaborator.Payment) paymentOutcome {
	out.kind = domain.FailurePaymentDeclined
	out.declined = &domain.PaymentDeclined{}
	if p != nil {
		out.declined.Message = p.Message
		out.declined.CanRetry = p.CanRetry
		out.declined.RedirectToStore = p.RedirectToStore
	}
	return out
}

func (o *Orchestrator) applyPaymentOutcomeLocked(ctx context.Context, creds collaborator.Credentials, step string, out paymentOutcome) (Result, error) {
	if out.fatal != nil {
		o.metrics.PaymentOutcomes.WithLabelValues(out.path, "fatal").Inc()
		o.freezeLocked(out.fatal)
		return o.resultLocked(), out.fatal
	}

	if out.order != nil && out.order.ID != "" {
		o.session.Order = out.order.Ref()
	}
	if out.status != "" && o.session.Order != nil {
		o.session.Order.PaymentStatus = out.status
	}
	if out.agentMsg != "" {
		o.session.AgentMessage = out.agentMsg
	}
	if out.estimate != "" {
		o.session.DeliveryEstimate = out.estimate
	}

	if out.success {
		o.metrics.PaymentOutcomes.WithLabelValues(out.path, "success").Inc()
		if o.session.OrderType != domain.OrderTypeStore {
			o.transitionLocked(domain.StateCompleted)
			o.log(step, "completed", nil)
			return o.resultLocked(), nil
		}
		return o.enterStoreSlotLocked(ctx, creds, step, out.slots)
	}

	o.session.PaymentAttempts++
	o.lastErr = domain.NewFailure(out.kind, out.declined.Message, o.session.PaymentAttempts)
	o.metrics.PaymentOutcomes.WithLabelValues(out.path, string(out.kind)).Inc()

	switch {
	case out.declined.RedirectToStore:
		o.metrics.StoreFallbacks.WithLabelValues("redirect").Inc()
	case o.session.PaymentAttempts >= domain.MaxPaymentAttempts:
		o.metrics.StoreFallbacks.WithLabelValues("attempts_exhausted").Inc()
	default:
		o.transitionLocked(domain.StateSelectingPayment)
		o.log(step, "declined", nil)
		return o.resultLocked(), nil
	}
	return o.enterStoreSlotLocked(ctx, creds, step, out.slots)
}

// enterStoreSlotLocked moves to slot selection, fetching the slot list when the
// collaborator did not already return one. A failed fetch leaves an empty list
// that RefreshStoreSlots can fill later.
func (o *Orchestrator) enterStoreSlotLocked(ctx context.Context, creds collaborator.Credentials, step string, slots []domain.StoreSlot) (Result, error) {
	if len(slots) == 0 {
		var err error
		o.callUnlocked(func() {
			slots, err = o.fulfillment.FetchSlots(ctx, creds)
		})
		if o.closed {
			o.log(step, "discarded", err)
			return o.resultLocked(), domain.ErrSessionClosed
		}
		if err != nil {
			o.lastErr = domain.NewFailure(domain.FailureSlotFetch, slotFetchMessage, o.session.PaymentAttempts)
			o.log(step, "slot_fetch_failed", err)
		}
	}

	o.setSlotsLocked(slots)
	o.transitionLocked(domain.StateSelectingStoreSlot)
	o.log(step, "store_slot", nil)
	return o.resultLocked(), nil
}
