package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dinhdungweb/Helios-account/internal/pricing"
	"github.com/dinhdungweb/Helios-account/internal/session"
	"github.com/dinhdungweb/Helios-account/pkg/httputil"
)

// PricingService serves cart quotes and product-page prices.
type PricingService interface {
	Quote(ctx context.Context, sc *session.Context, cartToken string) (*pricing.Quote, error)
	ProductPrice(ctx context.Context, sc *session.Context, handle string) (*pricing.ProductQuote, error)
}

// PricingHandler handles HTTP requests for the presentation feed.
type PricingHandler struct {
	sessions *session.Service
	service  PricingService
	logger   *slog.Logger
}

// NewPricingHandler creates a new pricing HTTP handler.
func NewPricingHandler(sessions *session.Service, svc PricingService, logger *slog.Logger) *PricingHandler {
	return &PricingHandler{
		sessions: sessions,
		service:  svc,
		logger:   logger,
	}
}

// Quote handles POST /api/v1/pricing/quote
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	sc, err := h.sessions.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	q, err := h.service.Quote(r.Context(), sc, cartToken(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, q)
}

// ProductPrice handles GET /api/v1/pricing/products/{handle}
func (h *PricingHandler) ProductPrice(w http.ResponseWriter, r *http.Request) {
	sc, err := h.sessions.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	pq, err := h.service.ProductPrice(r.Context(), sc, chi.URLParam(r, "handle"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pq)
}
