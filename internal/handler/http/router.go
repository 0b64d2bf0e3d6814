package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dinhdungweb/Helios-account/internal/session"
	"github.com/dinhdungweb/Helios-account/pkg/health"
	"github.com/dinhdungweb/Helios-account/pkg/middleware"
)

const serviceName = "tier-pricing"

// Services are the domain services exposed over HTTP.
type Services struct {
	Sessions *session.Service
	Pricing  PricingService
	Checkout CheckoutService
	Gifts    GiftService
}

// RateLimits bounds, per client IP, the routes that mint sessions or
// reach the order API. A zero RPS disables the limit.
type RateLimits struct {
	RPS   int
	Burst int
}

// NewRouter creates a chi router with all tier pricing routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	cors middleware.CORSConfig,
	limits RateLimits,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cors))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	sessionHandler := NewSessionHandler(svc.Sessions, logger)
	pricingHandler := NewPricingHandler(svc.Sessions, svc.Pricing, logger)
	checkoutHandler := NewCheckoutHandler(svc.Sessions, svc.Checkout, logger)
	giftHandler := NewGiftHandler(svc.Gifts, logger)
	limited := middleware.RateLimit(limits.RPS, limits.Burst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore())

		// Public: the signed payload is the credential, and gifts only
		// need a cart.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestLogger(logger))

			r.With(limited).Post("/sessions", sessionHandler.StartSession)
			r.Post("/gifts/sync", giftHandler.Sync)
			r.Post("/gifts", giftHandler.Add)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(svc.Sessions.ValidateToken))
			r.Use(middleware.RequestLogger(logger))

			r.Post("/pricing/quote", pricingHandler.Quote)
			r.Get("/pricing/products/{handle}", pricingHandler.ProductPrice)

			r.Group(func(r chi.Router) {
				r.Use(limited)

				r.Post("/checkout", checkoutHandler.Checkout)
				r.Post("/checkout/buy-now", checkoutHandler.BuyNow)
				r.Post("/draft-orders", checkoutHandler.ForceDraftOrder)
			})
		})
	})

	return r
}
