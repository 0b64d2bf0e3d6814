// Package session turns the signed, server-rendered customer payload into
// a session token and resolves tokens back into a per-request Context.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
	"github.com/dinhdungweb/Helios-account/pkg/middleware"
)

// Context is the explicit session passed to pricing, routing and order
// building. Tier and Policy are always taken from server configuration.
type Context struct {
	ID            string
	CustomerID    string
	CustomerEmail string
	Tier          *domain.CustomerTier
	Policy        domain.ScopePolicy
}

// Tiered reports whether discount logic applies to this customer.
func (c *Context) Tiered() bool {
	return c != nil && c.Tier != nil
}

// HasIdentity reports whether a draft order can be attributed to the customer.
func (c *Context) HasIdentity() bool {
	return c != nil && (c.CustomerID != "" || c.CustomerEmail != "")
}

// Payload is the customer data rendered into the storefront page together
// with hex(HMAC-SHA256(secret, "customer_id|customer_email|tier")).
type Payload struct {
	CustomerID    string
	CustomerEmail string
	Tier          string
	Signature     string
}

func (p Payload) message() string {
	return p.CustomerID + "|" + p.CustomerEmail + "|" + p.Tier
}

// Sign computes the signature the storefront template produces for p.
func Sign(secret []byte, p Payload) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(p.message()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the payload signature in constant time.
func Verify(secret []byte, p Payload) error {
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(p.Signature)))
	if err != nil {
		return apperrors.Unauthorized("malformed customer signature")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(p.message()))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return apperrors.Unauthorized("invalid customer signature")
	}
	return nil
}

// Started is the result of a successful session start.
type Started struct {
	Token     string
	ExpiresAt time.Time
	Session   *Context
}

// Service starts and resolves sessions.
type Service struct {
	secret []byte
	tokens *TokenManager
	tiers  domain.TierTable
	policy domain.ScopePolicy
	hints  HintStore
	logger *slog.Logger
}

// NewService creates a session service. hints may be nil.
func NewService(
	payloadSecret string,
	tokens *TokenManager,
	tiers domain.TierTable,
	policy domain.ScopePolicy,
	hints HintStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		secret: []byte(payloadSecret),
		tokens: tokens,
		tiers:  tiers,
		policy: policy,
		hints:  hints,
		logger: logger,
	}
}

// Start verifies a signed payload and issues a session token. Anonymous
// and untiered payloads are accepted; they simply carry no tier.
func (s *Service) Start(ctx context.Context, p Payload) (*Started, error) {
	// The signature covers the values exactly as the theme rendered them.
	if err := Verify(s.secret, p); err != nil {
		s.logger.WarnContext(ctx, "rejected session payload",
			slog.String("customer_id", strings.TrimSpace(p.CustomerID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	p.CustomerID = strings.TrimSpace(p.CustomerID)
	p.CustomerEmail = strings.TrimSpace(p.CustomerEmail)
	p.Tier = strings.TrimSpace(p.Tier)

	sc := s.newContext(uuid.NewString(), p.CustomerID, p.CustomerEmail, p.Tier)

	token, expiresAt, err := s.tokens.Issue(sc.ID, sc.CustomerID, sc.CustomerEmail, p.Tier)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	if s.hints != nil {
		if err := s.hints.SaveHints(ctx, sc.ID, HintsFor(sc)); err != nil {
			s.logger.WarnContext(ctx, "failed to store session hints",
				slog.String("session_id", sc.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	attrs := []any{slog.String("session_id", sc.ID), slog.Bool("tiered", sc.Tiered())}
	if sc.Tiered() {
		attrs = append(attrs, slog.String("tier", sc.Tier.Name), slog.Bool("tier_known", s.tiers.Known(sc.Tier.Name)))
	}
	s.logger.InfoContext(ctx, "session started", attrs...)

	return &Started{Token: token, ExpiresAt: expiresAt, Session: sc}, nil
}

// ValidateToken satisfies middleware.TokenValidator.
func (s *Service) ValidateToken(token string) (*middleware.Claims, error) {
	c, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		SessionID:     c.ID,
		CustomerID:    c.CustomerID,
		CustomerEmail: c.CustomerEmail,
		Tier:          c.Tier,
	}, nil
}

// FromClaims builds the session Context for verified claims.
func (s *Service) FromClaims(c *middleware.Claims) *Context {
	if c == nil {
		return nil
	}
	return s.newContext(c.SessionID, c.CustomerID, c.CustomerEmail, c.Tier)
}

// FromContext resolves the session of the current request.
func (s *Service) FromContext(ctx context.Context) (*Context, error) {
	sc := s.FromClaims(middleware.ClaimsFromContext(ctx))
	if sc == nil {
		return nil, apperrors.Unauthorized("session required")
	}
	return sc, nil
}

func (s *Service) newContext(id, customerID, email, tier string) *Context {
	return &Context{
		ID:            id,
		CustomerID:    customerID,
		CustomerEmail: email,
		Tier:          s.tiers.Lookup(tier),
		Policy:        s.policy,
	}
}
