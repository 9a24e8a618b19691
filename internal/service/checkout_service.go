package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/clock"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/logging"
	"github.com/fjod/storefront-checkout/internal/metrics"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/google/uuid"
)

type CheckoutService interface {
	Begin(ctx context.Context, creds collaborator.Credentials) (Result, error)
	Get(ctx context.Context, creds collaborator.Credentials, id string) (Result, error)
	SelectDeliveryType(ctx context.Context, creds collaborator.Credentials, id string, orderType domain.OrderType) (Result, error)
	SelectOffer(ctx context.Context, creds collaborator.Credentials, id string, offerID *int64) (Result, error)
	SubmitPayment(ctx context.Context, creds collaborator.Credentials, id string, method domain.PaymentMethod) (Result, error)
	RetryPayment(ctx context.Context, creds collaborator.Credentials, id string, method domain.PaymentMethod) (Result, error)
	RefreshStoreSlots(ctx context.Context, creds collaborator.Credentials, id string) (Result, error)
	ConfirmSlot(ctx context.Context, creds collaborator.Credentials, id string, slotID string) (Result, error)
	Abandon(ctx context.Context, creds collaborator.Credentials, id string) (Result, error)
}

// CheckoutServiceImpl owns the in-memory sessions. Each session has its own
// orchestrator and shares nothing with the others.
type CheckoutServiceImpl struct {
	mu       sync.RWMutex
	sessions map[string]*Orchestrator

	repo        r.Archive
	cart        *CartHandler
	payment     *PaymentHandler
	fulfillment *FulfillmentHandler
	offers      OfferFinder
	clock       clock.Clock
	metrics     *metrics.CheckoutMetrics
	idleTTL     time.Duration
}

func NewCheckoutService(
	repo r.Archive,
	cart *CartHandler,
	payment *PaymentHandler,
	fulfillment *FulfillmentHandler,
	offers OfferFinder,
	clk clock.Clock,
	m *metrics.CheckoutMetrics,
	idleTTL time.Duration,
) *CheckoutServiceImpl {
	if m == nil {
		m = metrics.NewNop()
	}
	return &CheckoutServiceImpl{
		sessions:    make(map[string]*Orchestrator),
		repo:        repo,
		cart:        cart,
		payment:     payment,
		fulfillment: fulfillment,
		offers:      offers,
		clock:       clk,
		metrics:     m,
		idleTTL:     idleTTL,
	}
}

// Begin snapshots the user's cart and starts a new session.
func (s *CheckoutServiceImpl) Begin(ctx context.Context, creds collaborator.Credentials) (Result, error) {
	if creds.UserID == "" {
		return Result{}, domain.NewValidationError("missing_user", "user is required to begin checkout")
	}

	snapshot, err := s.getCart(ctx, creds)
	if err != nil {
		return Result{}, err
	}

	session := domain.NewCheckoutSession(uuid.New().String(), creds.UserID, snapshot, s.clock.Now())
	o := NewOrchestrator(session, s.payment, s.fulfillment, s.offers, s.clock, s.metrics)

	s.mu.Lock()
	s.sessions[session.ID] = o
	s.mu.Unlock()
	s.metrics.ActiveSessions.Inc()

	logging.Log(logging.Fields{
		SessionID: session.ID,
		Step:      "begin",
		State:     session.State.String(),
		Status:    "ok",
		Message:   fmt.Sprintf("%d items, total %s", len(snapshot.Items), snapshot.Total.StringFixed(2)),
	})
	return o.Snapshot(), nil
}

// Get returns a live session, or the archived copy of a finished one.
func (s *CheckoutServiceImpl) Get(ctx context.Context, creds collaborator.Credentials, id string) (Result, error) {
	if o, err := s.lookup(creds, id); err == nil {
		return o.Snapshot(), nil
	}

	rec, err := s.repo.GetArchivedSession(ctx, id)
	if errors.Is(err, r.ErrSessionNotFound) {
		return Result{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to load archived session: %w", err)
	}
	if rec.UserID != creds.UserID {
		return Result{}, domain.ErrSessionNotFound
	}

	var session domain.CheckoutSession
	if err := json.Unmarshal(rec.Session, &session); err != nil {
		return Result{}, fmt.Errorf("failed to unmarshal archived session: %w", err)
	}
	return Result{State: session.State, Session: session}, nil
}

func (s *CheckoutServiceImpl) SelectDeliveryType(ctx context.Context, creds collaborator.Credentials, id string, orderType domain.OrderType) (Result, error) {
	return s.run(ctx, creds, id, func(o *Orchestrator) (Result, error) {
		return o.SelectDeliveryType(orderType)
	})
}

func (s *CheckoutServiceImpl) SelectOffer(ctx context.Context, creds collaborator.Credentials, id string, offerID *int64) (Result, error) {
	return s.run(ctx, creds, id, func(o *Orchestrator) (Result, error) {
		return o.SelectOffer(ctx, creds, offerID)
	})
}

func (s *CheckoutServiceImpl) SubmitPayment(ctx context.Context, creds collaborator.Credentials, id string, method domain.PaymentMethod) (Result, error) {
	return s.run(ctx, creds, id, func(o *Orchestrator) (Result, error) {
		return o.SubmitPayment(ctx, creds, method)
	})
}

func (s *CheckoutServiceImpl) RetryPayment(ctx context.Context, creds collaborator.Credentials, id string, method domain.PaymentMethod) (Result, error) {
	return s.run(ctx, creds, id, func(o *Orchestrator) (Result, error) {
		return o.RetryPayment(ctx, creds, method)
	})
}

func (s *CheckoutServiceImpl) RefreshStoreSlots(ctx context.Context, creds collaborator.Credentials, id string) (Result, error) {
	return s.run(ctx, creds, id, func(o *Orchestrator) (Result, error) {
		return o.RefreshStoreSlots(ctx, creds)
	})
}

func (s *CheckoutServiceImpl) ConfirmSlot(ctx context.Context, creds collaborator.Credentials, id string, slotID string) (Result, error) {
	return s.run(ctx, creds, id, func(o *Orchestrator) (Result, error) {
		return o.ConfirmSlot(ctx, creds, slotID)
	})
}

// Abandon closes the session and archives it. Nothing a collaborator already
// committed is undone.
func (s *CheckoutServiceImpl) Abandon(ctx context.Context, creds collaborator.Credentials, id string) (Result, error) {
	o, err := s.lookup(creds, id)
	if err != nil {
		return Result{}, err
	}
	res, err := o.Abandon()
	if err != nil {
		return res, err
	}
	s.finish(ctx, id, res, domain.ArchiveStatusAbandoned)
	return res, nil
}

func (s *CheckoutServiceImpl) run(ctx context.Context, creds collaborator.Credentials, id string, transition func(o *Orchestrator) (Result, error)) (Result, error) {
	o, err := s.lookup(creds, id)
	if err != nil {
		return Result{}, err
	}
	res, err := transition(o)
	if err == nil && res.State == domain.StateCompleted {
		s.finish(ctx, id, res, domain.ArchiveStatusCompleted)
	}
	return res, err
}

func (s *CheckoutServiceImpl) lookup(creds collaborator.Credentials, id string) (*Orchestrator, error) {
	s.mu.RLock()
	o, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || o.session.UserID != creds.UserID {
		return nil, domain.ErrSessionNotFound
	}
	return o, nil
}

// finish archives a completed or abandoned session and drops it from memory. A
// session whose archive write fails stays in memory for the janitor to retry.
func (s *CheckoutServiceImpl) finish(ctx context.Context, id string, res Result, status domain.ArchiveStatus) {
	rec, payload, err := archiveRecord(res, status, s.clock.Now())
	if err == nil {
		err = s.repo.ArchiveSession(ctx, rec, payload)
	}
	if err != nil && !errors.Is(err, r.ErrAlreadyArchived) {
		logging.Log(logging.Fields{
			SessionID: id,
			OrderID:   res.Session.OrderID(),
			Step:      "archive",
			State:     res.State.String(),
			Status:    "error",
			Error:     err.Error(),
		})
		return
	}

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		s.metrics.ActiveSessions.Dec()
	}
	logging.Log(logging.Fields{SessionID: id, OrderID: res.Session.OrderID(), Step: "archive", Status: string(status)})
}

type checkoutEvent struct {
	CheckoutID      string                    `json:"checkout_id"`
	UserID          string                    `json:"user_id"`
	Status          domain.ArchiveStatus      `json:"status"`
	State           domain.CheckoutState      `json:"state"`
	OrderID         string                    `json:"order_id,omitempty"`
	OrderNumber     string                    `json:"order_number,omitempty"`
	OrderType       domain.OrderType          `json:"order_type"`
	PaymentMethod   domain.PaymentMethod      `json:"payment_method"`
	PaymentAttempts int                       `json:"payment_attempts"`
	Items           []domain.CartSnapshotItem `json:"items"`
	Pricing         domain.Pricing            `json:"pricing"`
	Currency        string                    `json:"currency"`
	PickupSlotID    string                    `json:"pickup_slot_id,omitempty"`
	OccurredAt      time.Time                 `json:"occurred_at"`
}

func archiveRecord(res Result, status domain.ArchiveStatus, now time.Time) (*r.SessionRecord, json.RawMessage, error) {
	session := res.Session
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	ev := checkoutEvent{
		CheckoutID:      session.ID,
		UserID:          session.UserID,
		Status:          status,
		State:           session.State,
		OrderID:         session.OrderID(),
		OrderType:       session.OrderType,
		PaymentMethod:   session.PaymentMethod,
		PaymentAttempts: session.PaymentAttempts,
		Items:           session.Cart.Items,
		Pricing:         session.Pricing,
		Currency:        session.Cart.Currency,
		PickupSlotID:    session.SelectedSlotID,
		OccurredAt:      now,
	}
	if session.Order != nil {
		ev.OrderNumber = session.Order.OrderNumber
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal checkout event: %w", err)
	}

	return &r.SessionRecord{
		ID:              session.ID,
		UserID:          session.UserID,
		Status:          status,
		State:           session.State,
		OrderID:         session.OrderID(),
		OrderType:       session.OrderType,
		PaymentAttempts: session.PaymentAttempts,
		FinalTotal:      session.Pricing.FinalTotal.StringFixed(2),
		Session:         sessionJSON,
		ArchivedAt:      now,
	}, payload, nil
}
