package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/metrics"
)

// transportAttempts is the initial call plus one transparent retry.
const transportAttempts = 2

type CartHandler struct {
	client  collaborator.Storefront
	timeout time.Duration
	metrics *metrics.CheckoutMetrics
}

func NewCartHandler(client collaborator.Storefront, timeout time.Duration, m *metrics.CheckoutMetrics) *CartHandler {
	return &CartHandler{
		client:  client,
		timeout: timeout,
		metrics: m,
	}
}

func (h *CartHandler) GetCart(ctx context.Context, creds collaborator.Credentials) (*collaborator.Cart, error) {
	return callWithRetry(ctx, h.timeout, "get_cart", h.metrics, func(ctx context.Context) (*collaborator.Cart, error) {
		return h.client.GetCart(ctx, creds)
	})
}

type PaymentHandler struct {
	client  collaborator.Storefront
	timeout time.Duration
	metrics *metrics.CheckoutMetrics
}

func NewPaymentHandler(client collaborator.Storefront, timeout time.Duration, m *metrics.CheckoutMetrics) *PaymentHandler {
	return &PaymentHandler{
		client:  client,
		timeout: timeout,
		metrics: m,
	}
}

func (h *PaymentHandler) Submit(ctx context.Context, creds collaborator.Credentials, req collaborator.SubmitRequest) (*collaborator.SubmitResponse, error) {
	return callWithRetry(ctx, h.timeout, "submit_checkout", h.metrics, func(ctx context.Context) (*collaborator.SubmitResponse, error) {
		return h.client.SubmitCheckout(ctx, creds, req)
	})
}

func (h *PaymentHandler) Retry(ctx context.Context, creds collaborator.Credentials, req collaborator.RetryRequest) (*collaborator.RetryResponse, error) {
	return callWithRetry(ctx, h.timeout, "retry_checkout", h.metrics, func(ctx context.Context) (*collaborator.RetryResponse, error) {
		return h.client.RetryCheckout(ctx, creds, req)
	})
}

type FulfillmentHandler struct {
	client  collaborator.Storefront
	timeout time.Duration
	metrics *metrics.CheckoutMetrics
}

func NewFulfillmentHandler(client collaborator.Storefront, timeout time.Duration, m *metrics.CheckoutMetrics) *FulfillmentHandler {
	return &FulfillmentHandler{
		client:  client,
		timeout: timeout,
		metrics: m,
	}
}

func (h *FulfillmentHandler) FetchSlots(ctx context.Context, creds collaborator.Credentials) ([]domain.StoreSlot, error) {
	return callWithRetry(ctx, h.timeout, "fetch_store_slots", h.metrics, func(ctx context.Context) ([]domain.StoreSlot, error) {
		return h.client.FetchStoreSlots(ctx, creds)
	})
}

func (h *FulfillmentHandler) ConfirmSlot(ctx context.Context, creds collaborator.Credentials, req collaborator.ConfirmSlotRequest) (*collaborator.ConfirmSlotResponse, error) {
	return callWithRetry(ctx, h.timeout, "confirm_slot", h.metrics, func(ctx context.Context) (*collaborator.ConfirmSlotResponse, error) {
		return h.client.ConfirmSlot(ctx, creds, req)
	})
}

// callWithRetry bounds each attempt by timeout and repeats a call once when it
// fails at the transport level. Any other error is returned as is.
func callWithRetry[T any](ctx context.Context, timeout time.Duration, op string, m *metrics.CheckoutMetrics, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= transportAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		res, err := call(callCtx)
		cancel()
		err = asTransport(op, err)
		observe(m, op, err, time.Since(start))

		if err == nil {
			return res, nil
		}
		if !domain.IsTransport(err) {
			return zero, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return zero, lastErr
}

// asTransport classifies bare context errors from a collaborator as transport failures.
func asTransport(op string, err error) error {
	if err == nil || domain.IsTransport(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.TransportError{Op: op, Err: err}
	}
	return err
}

func observe(m *metrics.CheckoutMetrics, op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case domain.IsTransport(err):
		result = "transport_error"
	case err != nil:
		result = "error"
	}
	m.CollaboratorCall.WithLabelValues(op, result).Observe(float64(d.Milliseconds()))
}
