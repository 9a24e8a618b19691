package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/clock"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/logging"
	"github.com/fjod/storefront-checkout/internal/metrics"
)

// OfferFinder resolves an offer id against the loyalty catalog.
type OfferFinder interface {
	Find(ctx context.Context, creds collaborator.Credentials, id int64) (*domain.Offer, error)
}

// Result is what every transition hands back to the UI layer.
type Result struct {
	State     domain.CheckoutState   `json:"state"`
	Session   domain.CheckoutSession `json:"session"`
	LastError *domain.Failure        `json:"last_error,omitempty"`
}

// Orchestrator drives a single checkout session through its states. It runs
// one transition at a time: a trigger arriving while a collaborator call is
// outstanding is rejected with domain.ErrTransitionInProgress.
type Orchestrator struct {
	mu       sync.Mutex
	session  *domain.CheckoutSession
	lastErr  *domain.Failure
	inFlight bool
	closed   bool
	frozen   error

	payment     *PaymentHandler
	fulfillment *FulfillmentHandler
	offers      OfferFinder
	clock       clock.Clock
	metrics     *metrics.CheckoutMetrics
}

func NewOrchestrator(
	session *domain.CheckoutSession,
	payment *PaymentHandler,
	fulfillment *FulfillmentHandler,
	offers OfferFinder,
	clk clock.Clock,
	m *metrics.CheckoutMetrics,
) *Orchestrator {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Orchestrator{
		session:     session,
		payment:     payment,
		fulfillment: fulfillment,
		offers:      offers,
		clock:       clk,
		metrics:     m,
	}
}

// Snapshot returns the current state without triggering anything.
func (o *Orchestrator) Snapshot() Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resultLocked()
}

// Abandon closes the session. A collaborator call still in flight is allowed to
// finish but its result is discarded.
func (o *Orchestrator) Abandon() (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return o.resultLocked(), domain.ErrSessionClosed
	}
	if o.session.State.IsTerminal() {
		return o.resultLocked(), fmt.Errorf("%w: session already %s", domain.ErrIllegalTransition, o.session.State)
	}
	o.closed = true
	o.log("abandon", "abandoned", nil)
	return o.resultLocked(), nil
}

func (o *Orchestrator) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// guardLocked rejects a trigger that is not allowed right now.
func (o *Orchestrator) guardLocked(step string, allowed domain.CheckoutState) error {
	switch {
	case o.closed:
		return domain.ErrSessionClosed
	case o.frozen != nil:
		return fmt.Errorf("%w: %w", domain.ErrSessionFrozen, o.frozen)
	case o.inFlight:
		return domain.ErrTransitionInProgress
	case o.session.State != allowed:
		return fmt.Errorf("%w: %s is not allowed in state %s", domain.ErrIllegalTransition, step, o.session.State)
	}
	return nil
}

func (o *Orchestrator) transitionLocked(to domain.CheckoutState) {
	from := o.session.State
	if !domain.CanTransitionTo(from, to) {
		// every caller checks its source state first; reaching this is a programming error
		panic(fmt.Sprintf("checkout: illegal transition %s -> %s", from, to))
	}
	o.session.State = to
	o.session.UpdatedAt = o.clock.Now()
	o.metrics.Transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// callUnlocked runs fn without holding the lock. The lock is held on entry and
// is held again when callUnlocked returns.
func (o *Orchestrator) callUnlocked(fn func()) {
	o.mu.Unlock()
	defer o.mu.Lock()
	fn()
}

func (o *Orchestrator) freezeLocked(err error) {
	o.frozen = err
	o.log("freeze", "fatal", err)
}

func (o *Orchestrator) resultLocked() Result {
	res := Result{
		State:   o.session.State,
		Session: o.session.Clone(),
	}
	if o.lastErr != nil {
		e := *o.lastErr
		res.LastError = &e
	}
	return res
}

func (o *Orchestrator) log(step, status string, err error) {
	logging.Log(logging.Fields{
		SessionID: o.session.ID,
		OrderID:   o.session.OrderID(),
		Step:      step,
		State:     o.session.State.String(),
		Status:    status,
		Attempts:  o.session.PaymentAttempts,
		Error:     logging.Err(err),
	})
}
