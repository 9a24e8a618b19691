package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/metrics"
	"github.com/fjod/storefront-checkout/internal/offers"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/shopspring/decimal"
)

// MockStorefront implements collaborator.Storefront for testing. Each call
// hands its 1-based call number to the matching func field.
type MockStorefront struct {
	mu sync.Mutex

	Cart    *collaborator.Cart
	CartErr error

	SubmitFn  func(ctx context.Context, n int, req collaborator.SubmitRequest) (*collaborator.SubmitResponse, error)
	RetryFn   func(ctx context.Context, n int, req collaborator.RetryRequest) (*collaborator.RetryResponse, error)
	SlotsFn   func(ctx context.Context, n int) ([]domain.StoreSlot, error)
	ConfirmFn func(ctx context.Context, n int, req collaborator.ConfirmSlotRequest) (*collaborator.ConfirmSlotResponse, error)

	SubmitRequests  []collaborator.SubmitRequest
	RetryRequests   []collaborator.RetryRequest
	ConfirmRequests []collaborator.ConfirmSlotRequest
	SlotCalls       int
	Creds           []collaborator.Credentials
}

func (m *MockStorefront) GetCart(_ context.Context, creds collaborator.Credentials) (*collaborator.Cart, error) {
	m.mu.Lock()
	m.Creds = append(m.Creds, creds)
	m.mu.Unlock()
	return m.Cart, m.CartErr
}

func (m *MockStorefront) ListOffers(context.Context, collaborator.Credentials) ([]domain.Offer, error) {
	return nil, nil
}

func (m *MockStorefront) SubmitCheckout(ctx context.Context, creds collaborator.Credentials, req collaborator.SubmitRequest) (*collaborator.SubmitResponse, error) {
	m.mu.Lock()
	m.SubmitRequests = append(m.SubmitRequests, req)
	m.Creds = append(m.Creds, creds)
	n := len(m.SubmitRequests)
	m.mu.Unlock()
	if m.SubmitFn == nil {
		return &collaborator.SubmitResponse{Success: true, Order: testOrder("101")}, nil
	}
	return m.SubmitFn(ctx, n, req)
}

func (m *MockStorefront) RetryCheckout(ctx context.Context, _ collaborator.Credentials, req collaborator.RetryRequest) (*collaborator.RetryResponse, error) {
	m.mu.Lock()
	m.RetryRequests = append(m.RetryRequests, req)
	n := len(m.RetryRequests)
	m.mu.Unlock()
	if m.RetryFn == nil {
		return &collaborator.RetryResponse{Success: true}, nil
	}
	return m.RetryFn(ctx, n, req)
}

func (m *MockStorefront) FetchStoreSlots(ctx context.Context, _ collaborator.Credentials) ([]domain.StoreSlot, error) {
	m.mu.Lock()
	m.SlotCalls++
	n := m.SlotCalls
	m.mu.Unlock()
	if m.SlotsFn == nil {
		return testSlots(), nil
	}
	return m.SlotsFn(ctx, n)
}

func (m *MockStorefront) ConfirmSlot(ctx context.Context, _ collaborator.Credentials, req collaborator.ConfirmSlotRequest) (*collaborator.ConfirmSlotResponse, error) {
	m.mu.Lock()
	m.ConfirmRequests = append(m.ConfirmRequests, req)
	n := len(m.ConfirmRequests)
	m.mu.Unlock()
	if m.ConfirmFn == nil {
		return &collaborator.ConfirmSlotResponse{Success: true, PickupSlot: req.SlotID}, nil
	}
	return m.ConfirmFn(ctx, n, req)
}

func (m *MockStorefront) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SubmitRequests)
}

// MockOffers implements OfferFinder for testing
type MockOffers struct {
	Offers map[int64]*domain.Offer
	Err    error
}

func (m *MockOffers) Find(_ context.Context, _ collaborator.Credentials, id int64) (*domain.Offer, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.Offers[id]
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	return o, nil
}

// MockArchive implements r.Archive for testing
type MockArchive struct {
	mu         sync.Mutex
	Records    map[string]*r.SessionRecord
	Payloads   map[string]json.RawMessage
	ArchiveErr error
	Calls      int
}

func NewMockArchive() *MockArchive {
	return &MockArchive{
		Records:  make(map[string]*r.SessionRecord),
		Payloads: make(map[string]json.RawMessage),
	}
}

func (m *MockArchive) ArchiveSession(_ context.Context, rec *r.SessionRecord, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.ArchiveErr != nil {
		return m.ArchiveErr
	}
	if _, ok := m.Records[rec.ID]; ok {
		return r.ErrAlreadyArchived
	}
	m.Records[rec.ID] = rec
	m.Payloads[rec.ID] = payload
	return nil
}

func (m *MockArchive) GetArchivedSession(_ context.Context, id string) (*r.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok {
		return nil, r.ErrSessionNotFound
	}
	return rec, nil
}

// manualClock is a clock tests can move forward.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	testNow   = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	testCreds = collaborator.Credentials{UserID: "user-1", BearerToken: "token-1"}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func testOrder(id string) *collaborator.Order {
	return &collaborator.Order{
		ID:          collaborator.ID(id),
		OrderNumber: "ORD-" + id,
		Total:       dec("1000"),
		Status:      "pending",
	}
}

func testSlots() []domain.StoreSlot {
	return []domain.StoreSlot{
		{ID: "slot-1", Date: "2026-03-15", Time: "10:00-12:00", Store: "MG Road"},
		{ID: "slot-2", Date: "2026-03-15", Time: "14:00-16:00", Store: "MG Road"},
	}
}

func testCart() *collaborator.Cart {
	return &collaborator.Cart{
		Items: []collaborator.CartItem{
			{
				ID:       "1",
				Product:  collaborator.Product{ID: "11", PID: "SKU-11", Title: "Linen shirt", Price: dec("400")},
				Size:     "M",
				Quantity: 2,
				Subtotal: dec("800"),
			},
			{
				ID:       "2",
				Product:  collaborator.Product{ID: "12", Title: "Canvas belt", Price: dec("200")},
				Size:     "L",
				Quantity: 1,
				Subtotal: dec("200"),
			},
		},
		Total: dec("1000"),
	}
}

func testOffers() *MockOffers {
	return &MockOffers{Offers: map[int64]*domain.Offer{
		1: {ID: 1, BankName: "HDFC", DiscountPercent: dec("10"), MaxDiscount: dec("50"), MinOrder: dec("500")},
		2: {ID: 2, BankName: "ICICI", DiscountPercent: dec("15"), MaxDiscount: dec("300"), MinOrder: dec("2000")},
	}}
}

func declinedSubmit(msg string, redirect bool, order *collaborator.Order) *collaborator.SubmitResponse {
	return &collaborator.SubmitResponse{
		Success: false,
		Order:   order,
		Payment: &collaborator.Payment{Status: "failed", Message: msg, CanRetry: !redirect, RedirectToStore: redirect},
	}
}

func declinedRetry(msg string, redirect bool) *collaborator.RetryResponse {
	return &collaborator.RetryResponse{
		Success: false,
		Payment: &collaborator.Payment{Status: "failed", Message: msg, CanRetry: !redirect, RedirectToStore: redirect},
	}
}

func newTestOrchestrator(sf *MockStorefront, finder OfferFinder) *Orchestrator {
	return newTestOrchestratorWithTimeout(sf, finder, time.Second)
}

func newTestOrchestratorWithTimeout(sf *MockStorefront, finder OfferFinder, timeout time.Duration) *Orchestrator {
	if finder == nil {
		finder = testOffers()
	}
	session := domain.NewCheckoutSession("session-1", testCreds.UserID, buildCartSnapshot(testCart(), testNow), testNow)
	m := metrics.NewNop()
	return NewOrchestrator(
		session,
		NewPaymentHandler(sf, timeout, m),
		NewFulfillmentHandler(sf, timeout, m),
		finder,
		&manualClock{now: testNow},
		m,
	)
}

// newTestCheckoutService creates a fully wired CheckoutService for testing
func newTestCheckoutService(sf *MockStorefront, archive *MockArchive, clk *manualClock) *CheckoutServiceImpl {
	m := metrics.NewNop()
	return NewCheckoutService(
		archive,
		NewCartHandler(sf, time.Second, m),
		NewPaymentHandler(sf, time.Second, m),
		NewFulfillmentHandler(sf, time.Second, m),
		testOffers(),
		clk,
		m,
		30*time.Minute,
	)
}
