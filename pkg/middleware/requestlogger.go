package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dinhdungweb/Helios-account/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, customer_id, trace_id, and span_id, then stores it in
// context via logger.NewContext.
//
// Mount it AFTER RequestLogging, Tracing and SessionAuth.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if claims := ClaimsFromContext(ctx); claims != nil && claims.CustomerID != "" {
				ctx = logger.WithCustomerID(ctx, claims.CustomerID)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
