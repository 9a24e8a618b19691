package http

import (
	"net/http"
	"time"

	"github.com/fjod/storefront-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type RouterConfig struct {
	Checkout           *CheckoutHandler
	Offers             *OffersHandler
	ServerMetrics      *metrics.ServerMetrics
	Gatherer           prometheus.Gatherer
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware(cfg.ServerMetrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(BodyLimitMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Get("/offers", cfg.Offers.List)
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/options", cfg.Checkout.Options)
			r.Post("/", cfg.Checkout.Begin)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Checkout.Get)
				r.Delete("/", cfg.Checkout.Abandon)
				r.Post("/delivery", cfg.Checkout.SelectDeliveryType)
				r.Post("/offer", cfg.Checkout.SelectOffer)
				r.Post("/payment", cfg.Checkout.SubmitPayment)
				r.Post("/payment/retry", cfg.Checkout.RetryPayment)
				r.Get("/slots", cfg.Checkout.RefreshStoreSlots)
				r.Post("/slot", cfg.Checkout.ConfirmSlot)
			})
		})
	})

	return r
}
