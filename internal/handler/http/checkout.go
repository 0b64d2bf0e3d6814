package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dinhdungweb/Helios-account/internal/checkout"
	"github.com/dinhdungweb/Helios-account/internal/session"
	"github.com/dinhdungweb/Helios-account/pkg/httputil"
	"github.com/dinhdungweb/Helios-account/pkg/validator"
)

// CheckoutService runs checkout attempts.
type CheckoutService interface {
	Checkout(ctx context.Context, sc *session.Context, cartToken string) (*checkout.Result, error)
	ForceDraftOrder(ctx context.Context, sc *session.Context, cartToken string) (*checkout.Result, error)
	BuyNow(ctx context.Context, sc *session.Context, cartToken string, in checkout.BuyNowInput) (*checkout.Result, error)
}

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	sessions *session.Service
	service  CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(sessions *session.Service, svc CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		service:  svc,
		logger:   logger,
	}
}

// BuyNowRequest is the JSON request body of the product-page buy button.
type BuyNowRequest struct {
	Handle    string `json:"handle" validate:"required,max=255"`
	VariantID int64  `json:"variant_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=100"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.Checkout)
}

// ForceDraftOrder handles POST /api/v1/draft-orders
func (h *CheckoutHandler) ForceDraftOrder(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.ForceDraftOrder)
}

// BuyNow handles POST /api/v1/checkout/buy-now
func (h *CheckoutHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	var req BuyNowRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.run(w, r, func(ctx context.Context, sc *session.Context, token string) (*checkout.Result, error) {
		return h.service.BuyNow(ctx, sc, token, checkout.BuyNowInput{
			Handle:    req.Handle,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
		})
	})
}

func (h *CheckoutHandler) run(
	w http.ResponseWriter,
	r *http.Request,
	attempt func(ctx context.Context, sc *session.Context, cartToken string) (*checkout.Result, error),
) {
	sc, err := h.sessions.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := attempt(r.Context(), sc, cartToken(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}
