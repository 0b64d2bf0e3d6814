package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dinhdungweb/Helios-account/internal/gift"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
	"github.com/dinhdungweb/Helios-account/pkg/httputil"
)

// GiftService applies the free-gift promotion to a cart.
type GiftService interface {
	Sync(ctx context.Context, cartToken string) (*gift.SyncResult, error)
	Add(ctx context.Context, cartToken string) (*gift.SyncResult, error)
}

// GiftHandler handles HTTP requests for free-gift endpoints. Gifts are
// not tier-bound, so these routes only need a cart token.
type GiftHandler struct {
	service GiftService
	logger  *slog.Logger
}

// NewGiftHandler creates a new gift HTTP handler.
func NewGiftHandler(svc GiftService, logger *slog.Logger) *GiftHandler {
	return &GiftHandler{
		service: svc,
		logger:  logger,
	}
}

// Sync handles POST /api/v1/gifts/sync
func (h *GiftHandler) Sync(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.Sync)
}

// Add handles POST /api/v1/gifts
func (h *GiftHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.Add)
}

func (h *GiftHandler) run(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*gift.SyncResult, error)) {
	token := cartToken(r)
	if token == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("cart token is required"), h.logger)
		return
	}

	res, err := op(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}
