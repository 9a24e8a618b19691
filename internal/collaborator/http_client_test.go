package collaborator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{UserID: "42", BearerToken: "token-abc"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, srv.Client())
}

func TestSubmitCheckout_SendsRequestWithCredentials(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/checkout", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"order": {"id": 17, "order_number": "ORD123456", "total": 950.0, "status": "confirmed", "payment_status": "paid"},
			"payment": {"status": "success", "message": "Payment successful!"},
			"delivery": {"estimated_date": "Monday, 12 October 2026"}
		}`))
	})

	offerID := int64(3)
	resp, err := client.SubmitCheckout(context.Background(), testCreds, SubmitRequest{
		OrderType:     domain.OrderTypeOnline,
		PaymentMethod: domain.PaymentMethodUPI,
		OfferID:       &offerID,
	})

	require.NoError(t, err)
	assert.Equal(t, "online", got["order_type"])
	assert.Equal(t, "upi", got["payment_method"])
	assert.Equal(t, float64(3), got["offer_id"])

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Order)
	assert.Equal(t, ID("17"), resp.Order.ID)
	assert.Equal(t, "950", resp.Order.Ref().Total.String())
	assert.Equal(t, "Monday, 12 October 2026", resp.Delivery.EstimatedDate)
}

func TestSubmitCheckout_DeclinedWithRedirect(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "payment": {"status": "failed_final", "message": "Payment declined.", "attempt_number": 2, "redirect_to_store": true}}`))
	})

	resp, err := client.SubmitCheckout(context.Background(), testCreds, SubmitRequest{OrderType: domain.OrderTypeOnline, PaymentMethod: domain.PaymentMethodUPI})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.True(t, resp.Payment.RedirectToStore)
	assert.Equal(t, "Payment declined.", resp.Payment.Message)
}

func TestRetryCheckout_EncodesNumericOrderID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "17", string(raw["order_id"]))
		assert.Equal(t, `"cod"`, string(raw["payment_method"]))
		w.Write([]byte(`{"success": true, "payment": {"status": "success"}}`))
	})

	resp, err := client.RetryCheckout(context.Background(), testCreds, RetryRequest{OrderID: "17", PaymentMethod: domain.PaymentMethodCOD})

	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestFetchStoreSlots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agents/fulfillment/slots", r.URL.Path)
		w.Write([]byte(`[{"id": "1_20261016_morning", "date": "Friday, 16 October", "time": "10:00 AM - 1:00 PM", "store": "Banjara Hills"}]`))
	})

	slots, err := client.FetchStoreSlots(context.Background(), testCreds)

	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "1_20261016_morning", slots[0].ID)
	assert.Equal(t, "Banjara Hills", slots[0].Store)
}

func TestListOffers_DecodesDecimals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "bank_name": "HDFC", "discount_percent": 10, "max_discount": 500.5, "min_order": 2000, "description": "10% off"}]`))
	})

	offers, err := client.ListOffers(context.Background(), testCreds)

	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, int64(1), offers[0].ID)
	assert.Equal(t, "500.5", offers[0].MaxDiscount.String())
	assert.Equal(t, "2000", offers[0].MinOrder.String())
}

func TestDo_ServerErrorIsTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetCart(context.Background(), testCreds)

	assert.True(t, domain.IsTransport(err))
}

func TestDo_TimeoutIsTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.FetchStoreSlots(ctx, testCreds)

	assert.True(t, domain.IsTransport(err))
}

func TestDo_ClientErrorCarriesDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Order not found"}`))
	})

	_, err := client.RetryCheckout(context.Background(), testCreds, RetryRequest{OrderID: "99", PaymentMethod: domain.PaymentMethodUPI})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "Order not found", statusErr.Detail)
	assert.False(t, domain.IsTransport(err))
}

func TestID_RoundTrip(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte(`"ord-7"`), &id))
	assert.Equal(t, ID("ord-7"), id)

	out, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"ord-7"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`12`), &id))
	out, err = json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `12`, string(out))
}
