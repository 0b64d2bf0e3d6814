package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dinhdungweb/Helios-account/pkg/httputil"
	"github.com/dinhdungweb/Helios-account/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "session_claims"

// Claims is the verified storefront session carried by the bearer token.
type Claims struct {
	SessionID     string
	CustomerID    string
	CustomerEmail string
	Tier          string
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// SessionAuth validates the session token and injects the claims into context.
func SessionAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, r, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w, r, "invalid authorization header format")
				return
			}

			claims, err := validate(strings.TrimSpace(parts[1]))
			if err != nil {
				writeAuthError(w, r, "invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores session claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the session claims set by SessionAuth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "UNAUTHORIZED",
			Message:   message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
