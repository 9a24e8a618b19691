package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fjod/storefront-checkout/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 4 << 10

// HTTPClient talks JSON to the storefront backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPClient{baseURL: baseURL, client: client}
}

func (c *HTTPClient) GetCart(ctx context.Context, creds Credentials) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, creds, "get_cart", http.MethodGet, "/api/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *HTTPClient) ListOffers(ctx context.Context, creds Credentials) ([]domain.Offer, error) {
	var offers []domain.Offer
	if err := c.do(ctx, creds, "list_offers", http.MethodGet, "/api/agents/offers", nil, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (c *HTTPClient) SubmitCheckout(ctx context.Context, creds Credentials, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, creds, "submit_checkout", http.MethodPost, "/api/checkout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) RetryCheckout(ctx context.Context, creds Credentials, req RetryRequest) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.do(ctx, creds, "retry_checkout", http.MethodPost, "/api/checkout/retry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) FetchStoreSlots(ctx context.Context, creds Credentials) ([]domain.StoreSlot, error) {
	var slots []domain.StoreSlot
	if err := c.do(ctx, creds, "fetch_store_slots", http.MethodGet, "/api/agents/fulfillment/slots", nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *HTTPClient) ConfirmSlot(ctx context.Context, creds Credentials, req ConfirmSlotRequest) (*ConfirmSlotResponse, error) {
	var resp ConfirmSlotResponse
	if err := c.do(ctx, creds, "confirm_slot", http.MethodPost, "/api/checkout/confirm-slot", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, creds Credentials, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.BearerToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail := readDetail(resp.Body)
		if isTransientStatus(resp.StatusCode) {
			return &domain.TransportError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, detail)}
		}
		return &StatusError{Op: op, Code: resp.StatusCode, Detail: detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &domain.TransportError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// readDetail extracts the FastAPI-style {"detail": ...} message when present.
func readDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(raw)
}
