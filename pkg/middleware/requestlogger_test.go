package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/dinhdungweb/Helios-account/pkg/logger"
)

func newTestLogger(w *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("test-svc", "info", w)
}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func loggingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("test")
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestLogger_StoresLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	RequestLogger(newTestLogger(&buf))(loggingHandler()).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	if buf.Len() == 0 {
		t.Fatal("expected log output from the context logger")
	}
}

func TestRequestLogger_IncludesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithCorrelationID(context.Background(), "corr-test-123")
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)
	RequestLogger(newTestLogger(&buf))(loggingHandler()).ServeHTTP(httptest.NewRecorder(), req)

	if got := logLine(t, &buf)["correlation_id"]; got != "corr-test-123" {
		t.Errorf("correlation_id = %v, want %q", got, "corr-test-123")
	}
}

func TestRequestLogger_IncludesCustomerFromClaims(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithClaims(context.Background(), &Claims{CustomerID: "7019", Tier: "GOLD"})
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)
	RequestLogger(newTestLogger(&buf))(loggingHandler()).ServeHTTP(httptest.NewRecorder(), req)

	if got := logLine(t, &buf)["customer_id"]; got != "7019" {
		t.Errorf("customer_id = %v, want %q", got, "7019")
	}
}

func TestRequestLogger_NoClaims_OmitsCustomer(t *testing.T) {
	var buf bytes.Buffer
	RequestLogger(newTestLogger(&buf))(loggingHandler()).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	if _, ok := logLine(t, &buf)["customer_id"]; ok {
		t.Error("customer_id should be absent without session claims")
	}
}

func TestRequestLogger_IncludesTraceFields(t *testing.T) {
	var buf bytes.Buffer

	traceID, _ := trace.TraceIDFromHex("abcdef1234567890abcdef1234567890")
	spanID, _ := trace.SpanIDFromHex("1234567890abcdef")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)
	RequestLogger(newTestLogger(&buf))(loggingHandler()).ServeHTTP(httptest.NewRecorder(), req)

	out := logLine(t, &buf)
	if out["trace_id"] != "abcdef1234567890abcdef1234567890" {
		t.Errorf("trace_id = %v", out["trace_id"])
	}
	if out["span_id"] != "1234567890abcdef" {
		t.Errorf("span_id = %v", out["span_id"])
	}
}
