package router

import (
	"net/http"
	"time"

	"pack-store/internal/handler"
	"pack-store/internal/metrics"
	"pack-store/internal/middleware"
	"pack-store/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Products *handler.ProductHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Webhooks *handler.WebhookHandler
	Quotes   *handler.QuoteHandler
}

// Options configures cross-cutting concerns of the router.
type Options struct {
	APIKey         string
	AllowedOrigins []string

	// QuoteLimiter throttles the public quote form. Nil disables throttling.
	QuoteLimiter ratelimit.Store
	QuoteLimit   int
	QuoteWindow  time.Duration

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> Logging -> Metrics -> CORS -> Identity
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			middleware.HeaderAPIKey,
			middleware.HeaderUserID,
			middleware.HeaderUserEmail,
		},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(middleware.Identity)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Products.GetAll)
		r.Get("/products/{id}", h.Products.GetByID)

		r.Get("/shipping-options", h.Checkout.ShippingOptions)
		r.Post("/pricing/quote", h.Checkout.Quote)
		r.Post("/checkout", h.Checkout.Create)

		r.Get("/orders/session/{sessionID}", h.Orders.GetBySession)

		r.Post("/webhooks/stripe", h.Webhooks.Stripe)

		r.Group(func(r chi.Router) {
			if opts.QuoteLimiter != nil {
				r.Use(ratelimit.Middleware(opts.QuoteLimiter, ratelimit.Config{
					Name:   "quotes",
					Limit:  opts.QuoteLimit,
					Window: opts.QuoteWindow,
					OnLimited: func(*http.Request) {
						opts.Metrics.RateLimited("quotes")
					},
				}, logger))
			}
			r.Post("/quotes", h.Quotes.Submit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(opts.APIKey, logger))
			r.Get("/orders/{id}", h.Orders.GetByID)
			r.Get("/orders/session/{sessionID}", h.Orders.GetBySessionAdmin)
			r.Patch("/orders/{id}/status", h.Orders.UpdateStatus)
		})
	})

	return r
}
