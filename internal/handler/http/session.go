package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/internal/session"
	"github.com/dinhdungweb/Helios-account/pkg/httputil"
	"github.com/dinhdungweb/Helios-account/pkg/validator"
)

// SessionHandler handles HTTP requests for session endpoints.
type SessionHandler struct {
	sessions *session.Service
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(sessions *session.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// --- Request / response DTOs ---

// StartSessionRequest is the customer payload rendered by the theme.
type StartSessionRequest struct {
	CustomerID    string `json:"customer_id" validate:"max=64"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email,max=254"`
	Tier          string `json:"tier" validate:"max=64"`
	Signature     string `json:"signature" validate:"required,hmac_sha256"`
}

// TierResponse describes the resolved tier of a session.
type TierResponse struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

// SessionResponse is returned by StartSession.
type SessionResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	SessionID string             `json:"session_id"`
	Tier      *TierResponse      `json:"tier,omitempty"`
	Scope     domain.ScopePolicy `json:"scope"`
}

// StartSession handles POST /api/v1/sessions
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	started, err := h.sessions.Start(r.Context(), session.Payload{
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		Tier:          req.Tier,
		Signature:     req.Signature,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := SessionResponse{
		Token:     started.Token,
		ExpiresAt: started.ExpiresAt,
		SessionID: started.Session.ID,
		Scope:     started.Session.Policy,
	}
	if t := started.Session.Tier; t != nil {
		resp.Tier = &TierResponse{Name: t.Name, Percent: t.DefaultPercent}
	}

	httputil.WriteData(w, http.StatusCreated, resp)
}
