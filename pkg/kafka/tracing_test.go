package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaderCarrier_SetAndGet(t *testing.T) {
	headers := []kafka.Header{
		{Key: "existing", Value: []byte("value1")},
	}
	carrier := &KafkaHeaderCarrier{headers: &headers}

	// Get existing header.
	if got := carrier.Get("existing"); got != "value1" {
		t.Errorf("Get(existing) = %q, want %q", got, "value1")
	}

	// Get non-existing header.
	if got := carrier.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}

	// Set a new header.
	carrier.Set("new-key", "new-value")
	if got := carrier.Get("new-key"); got != "new-value" {
		t.Errorf("Get(new-key) = %q, want %q", got, "new-value")
	}

	// Overwrite existing header.
	carrier.Set("existing", "updated")
	if got := carrier.Get("existing"); got != "updated" {
		t.Errorf("Get(existing) after update = %q, want %q", got, "updated")
	}
}

func TestKafkaHeaderCarrier_Keys(t *testing.T) {
	headers := []kafka.Header{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "c", Value: []byte("3")},
	}
	carrier := &KafkaHeaderCarrier{headers: &headers}

	keys := carrier.Keys()
	if len(keys) != 3 {
		t.Fatalf("Keys() returned %d keys, want 3", len(keys))
	}

	expected := map[string]bool{"a": true, "b": true, "c": true}
	for _, k := range keys {
		if !expected[k] {
			t.Errorf("unexpected key: %q", k)
		}
	}
}

func TestKafkaHeaderCarrier_PropagationRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	headers := []kafka.Header{}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&headers))

	want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if got := NewHeaderCarrier(&headers).Get("traceparent"); got != want {
		t.Errorf("traceparent = %q, want %q", got, want)
	}

	extracted := otel.GetTextMapPropagator().Extract(context.Background(), NewHeaderCarrier(&headers))
	if got := trace.SpanContextFromContext(extracted).TraceID(); got != traceID {
		t.Errorf("extracted trace id = %s, want %s", got, traceID)
	}
}

func TestKafkaHeaderCarrier_EmptyHeaders(t *testing.T) {
	headers := []kafka.Header{}
	carrier := &KafkaHeaderCarrier{headers: &headers}

	keys := carrier.Keys()
	if len(keys) != 0 {
		t.Errorf("Keys() on empty headers = %d, want 0", len(keys))
	}

	if got := carrier.Get("anything"); got != "" {
		t.Errorf("Get on empty headers = %q, want empty", got)
	}
}
