package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type routedData struct {
	Decision string `json:"decision"`
	Code     string `json:"code"`
}

// --- Event ---

func TestNewEvent_Fields(t *testing.T) {
	data := routedData{Decision: "single_code", Code: "AUTO_GOLD_10"}
	event, err := NewEvent(Topic("checkout", "routed"), Aggregate{Type: "checkout_attempt", ID: "attempt-1"}, "tier-pricing", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "checkout.routed", event.EventType)
	assert.Equal(t, "attempt-1", event.AggregateID)
	assert.Equal(t, "checkout_attempt", event.AggregateType)
	assert.Equal(t, SchemaVersion, event.Version)
	assert.Equal(t, "tier-pricing", event.Source)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got routedData
	require.NoError(t, event.DecodeData(&got))
	assert.Equal(t, data, got)
}

func TestNewEvent_Rejections(t *testing.T) {
	_, err := NewEvent(Topic("gift", "added"), Aggregate{Type: "cart", ID: "cart-1"}, "svc", make(chan int))
	assert.ErrorContains(t, err, "marshal helios.gift.added payload")

	_, err = NewEvent(Topic("gift", "added"), Aggregate{Type: "cart"}, "svc", nil)
	assert.ErrorContains(t, err, "aggregate id is required")
}

func TestEvent_WithMetadata_SkipsEmpty(t *testing.T) {
	event := &Event{}
	event.WithMetadata("customer_id", "7019").WithMetadata("tier", "")

	assert.Equal(t, map[string]string{"customer_id": "7019"}, event.Metadata)
}

// --- Topics ---

func TestTopic_Format(t *testing.T) {
	assert.Equal(t, "helios.checkout.routed", Topic("checkout", "routed"))
	assert.Equal(t, "helios.gift.removed", Topic("gift", "removed"))
}

func TestEventType_StripsPrefix(t *testing.T) {
	assert.Equal(t, "checkout.draft_order_created", EventType(Topic("checkout", "draft_order_created")))
	assert.Equal(t, "other.topic", EventType("other.topic"))
}

// --- Producer ---

func TestProducer_Publish_WritesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discard()}

	topic := Topic("checkout", "routed")
	event, err := NewEvent(topic, Aggregate{Type: "checkout_attempt", ID: "attempt-9"}, "tier-pricing", routedData{Code: "VIPGOLD"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	before := testutil.ToFloat64(EventsPublished.WithLabelValues(topic, OutcomeSent))
	require.NoError(t, p.Publish(context.Background(), topic, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "attempt-9", string(msg.Key))

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "checkout.routed", carrier.Get("event_type"))
	assert.Equal(t, "checkout_attempt", carrier.Get("aggregate_type"))
	assert.Equal(t, "1", carrier.Get("version"))
	assert.Equal(t, "tier-pricing", carrier.Get("source"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, before+1, testutil.ToFloat64(EventsPublished.WithLabelValues(topic, OutcomeSent)))
}

func TestProducer_Publish_Error(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{writer: w, logger: discard()}

	topic := Topic("gift", "added")
	event, err := NewEvent(topic, Aggregate{Type: "cart", ID: "cart-1"}, "", nil)
	require.NoError(t, err)

	before := testutil.ToFloat64(EventsPublished.WithLabelValues(topic, OutcomeFailed))
	err = p.Publish(context.Background(), topic, event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to helios.gift.added")
	assert.Equal(t, before+1, testutil.ToFloat64(EventsPublished.WithLabelValues(topic, OutcomeFailed)))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discard()}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducer_CreatesInstance(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092"})
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.False(t, cfg.Async)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
