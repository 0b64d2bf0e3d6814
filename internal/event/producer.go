package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	pkgkafka "github.com/dinhdungweb/Helios-account/pkg/kafka"
	"github.com/dinhdungweb/Helios-account/pkg/logger"
)

// Kafka topics for checkout and gift events.
var (
	TopicCheckoutRouted    = pkgkafka.Topic("checkout", "routed")
	TopicDraftOrderCreated = pkgkafka.Topic("checkout", "draft_order_created")
	TopicCheckoutFailed    = pkgkafka.Topic("checkout", "failed")
	TopicGiftAdded         = pkgkafka.Topic("gift", "added")
	TopicGiftRemoved       = pkgkafka.Topic("gift", "removed")
)

// Aggregate type constants.
const (
	AggregateTypeAttempt = "checkout_attempt"
	AggregateTypeCart    = "cart"
)

// SourceTierPricing identifies events originating from this service.
const SourceTierPricing = "tier-pricing-service"

// CheckoutRoutedData is the payload for a checkout.routed event.
type CheckoutRoutedData struct {
	AttemptID   string              `json:"attempt_id"`
	SessionID   string              `json:"session_id"`
	CustomerID  string              `json:"customer_id,omitempty"`
	Tier        string              `json:"tier,omitempty"`
	Decision    domain.DecisionKind `json:"decision"`
	Code        string              `json:"code,omitempty"`
	Percent     int                 `json:"percent"`
	Origin      domain.CodeOrigin   `json:"origin,omitempty"`
	LineCount   int                 `json:"line_count"`
	Fingerprint string              `json:"cart_fingerprint"`
}

// DraftOrderCreatedData is the payload for a checkout.draft_order_created event.
type DraftOrderCreatedData struct {
	AttemptID  string             `json:"attempt_id"`
	CustomerID string             `json:"customer_id,omitempty"`
	Lines      []domain.OrderLine `json:"lines"`
	Total      int64              `json:"total"`
	InvoiceURL string             `json:"invoice_url"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	AttemptID     string              `json:"attempt_id"`
	CustomerID    string              `json:"customer_id,omitempty"`
	FailedAt      domain.AttemptState `json:"failed_at"`
	FailureReason string              `json:"failure_reason"`
	Retryable     bool                `json:"retryable"`
}

// GiftData is the payload for gift.added and gift.removed events.
type GiftData struct {
	CartToken string `json:"cart_token"`
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Trigger   string `json:"trigger"`
}

// Producer publishes domain events. A Producer with a nil publisher drops
// every event, which is how EVENTS_ENABLED=false is honored.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer. publisher may be nil.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// Enabled reports whether events are sent anywhere.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

// PublishCheckoutRouted publishes a checkout.routed event.
func (p *Producer) PublishCheckoutRouted(ctx context.Context, data CheckoutRoutedData) error {
	return p.publish(ctx, TopicCheckoutRouted, data.AttemptID, AggregateTypeAttempt, data)
}

// PublishDraftOrderCreated publishes a checkout.draft_order_created event.
func (p *Producer) PublishDraftOrderCreated(ctx context.Context, data DraftOrderCreatedData) error {
	return p.publish(ctx, TopicDraftOrderCreated, data.AttemptID, AggregateTypeAttempt, data)
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, data CheckoutFailedData) error {
	return p.publish(ctx, TopicCheckoutFailed, data.AttemptID, AggregateTypeAttempt, data)
}

// PublishGiftAdded publishes a gift.added event.
func (p *Producer) PublishGiftAdded(ctx context.Context, data GiftData) error {
	return p.publish(ctx, TopicGiftAdded, data.CartToken, AggregateTypeCart, data)
}

// PublishGiftRemoved publishes a gift.removed event.
func (p *Producer) PublishGiftRemoved(ctx context.Context, data GiftData) error {
	return p.publish(ctx, TopicGiftRemoved, data.CartToken, AggregateTypeCart, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if !p.Enabled() {
		pkgkafka.EventsSkipped.WithLabelValues(topic).Inc()
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, pkgkafka.Aggregate{Type: aggregateType, ID: aggregateID}, SourceTierPricing, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("attempt_id", logger.AttemptIDFromContext(ctx))

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
