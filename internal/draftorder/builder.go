// Package draftorder creates manually priced orders through the external
// order-creation API and returns the payment link.
package draftorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/internal/pricing"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
	"github.com/dinhdungweb/Helios-account/pkg/httpclient"
)

const (
	serviceName = "order"

	// DefaultTimeout bounds a single order creation call.
	DefaultTimeout = 15 * time.Second
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds the order API settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Builder assembles the manual order and submits it.
type Builder struct {
	http   HTTPDoer
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a draft order builder. The doer must not retry:
// the order API is not idempotent.
func NewBuilder(doer HTTPDoer, cfg Config, logger *slog.Logger) *Builder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Builder{
		http:   doer,
		cfg:    cfg,
		logger: logger,
	}
}

// BuildInput is everything a manual order needs. Carried holds percents
// already decided for this attempt; Presented is the advisory quote last
// shown to the customer.
type BuildInput struct {
	Cart          *domain.Cart
	CustomerID    string
	CustomerEmail string
	Tier          *domain.CustomerTier
	Policy        domain.ScopePolicy
	Carried       map[int64]int
	Presented     *domain.PresentedState
}

type orderItem struct {
	VariantID       int64   `json:"variant_id"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	DiscountPercent int     `json:"discount_percent"`
}

type createOrderRequest struct {
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email"`
	Items         []orderItem `json:"items"`
}

type createOrderResponse struct {
	InvoiceURL string `json:"invoice_url"`
}

// Lines resolves the percent of every cart line, in cart order. Paid lines
// take a carried percent first, then the presented one when the presented
// state was computed for this exact cart, then a fresh resolution. Lookups
// are keyed by variant, never by position.
func Lines(in BuildInput) []domain.OrderLine {
	if in.Cart == nil {
		return nil
	}
	presented := in.Presented
	if !presented.Matches(in.Cart) {
		presented = nil
	}

	lines := make([]domain.OrderLine, len(in.Cart.Lines))
	for i, line := range in.Cart.Lines {
		variant := line.Item.VariantID
		res := pricing.ResolveLine(in.Tier, line, in.Policy)
		percent := res.Percent

		if res.Source != pricing.SourceGift {
			if p, ok := in.Carried[variant]; ok {
				percent = p
			} else if p, ok := presentedPercent(presented, variant); ok {
				percent = p
			}
		}

		lines[i] = domain.OrderLine{
			VariantID:       variant,
			Quantity:        line.Quantity,
			UnitPrice:       line.Item.UnitPrice,
			DiscountPercent: domain.ClampPercent(percent),
			FreeGift:        res.Source == pricing.SourceGift,
		}
	}
	return lines
}

func presentedPercent(p *domain.PresentedState, variant int64) (int, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.Percents[variant]
	return v, ok
}

// Build creates the order and returns its invoice URL.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*url.URL, error) {
	if in.CustomerID == "" && in.CustomerEmail == "" {
		return nil, apperrors.IdentityMissing()
	}
	if in.Cart.IsEmpty() {
		return nil, apperrors.EmptyCart()
	}

	lines := Lines(in)
	req := createOrderRequest{
		CustomerID:    in.CustomerID,
		CustomerEmail: in.CustomerEmail,
		Items:         make([]orderItem, len(lines)),
	}
	for i, l := range lines {
		req.Items[i] = orderItem{
			VariantID:       l.VariantID,
			Quantity:        l.Quantity,
			Price:           domain.MajorUnits(l.UnitPrice),
			DiscountPercent: l.DiscountPercent,
		}
	}

	invoice, err := b.submit(ctx, req)
	if err != nil {
		b.logger.ErrorContext(ctx, "draft order creation failed",
			slog.Int("lines", len(lines)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	b.logger.InfoContext(ctx, "draft order created",
		slog.Int("lines", len(lines)),
		slog.String("invoice_host", invoice.Host),
	)
	return invoice, nil
}

func (b *Builder) submit(ctx context.Context, payload createOrderRequest) (*url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.http.Do(ctx, httpReq)
	if err != nil {
		return nil, upstreamError(err)
	}

	var out createOrderResponse
	if err := httpclient.DecodeJSON(resp, serviceName, &out); err != nil {
		return nil, err
	}

	invoice, err := url.Parse(out.InvoiceURL)
	if err != nil || out.InvoiceURL == "" || !invoice.IsAbs() ||
		(invoice.Scheme != "https" && invoice.Scheme != "http") {
		return nil, apperrors.Upstream(serviceName, resp.StatusCode,
			fmt.Sprintf("invalid invoice_url %q", out.InvoiceURL))
	}
	return invoice, nil
}

// upstreamError maps transport failures onto the retryable upstream error.
// Errors that are already AppErrors (an open circuit) pass through.
func upstreamError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var upErr *apperrors.UpstreamError
	if errors.As(err, &upErr) {
		return apperrors.Upstream(serviceName, upErr.StatusCode, upErr.Body)
	}
	return apperrors.Upstream(serviceName, 0, err.Error())
}
