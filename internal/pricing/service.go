package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/internal/session"
	"github.com/dinhdungweb/Helios-account/internal/storefront"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
)

// CartReader reads the live cart.
type CartReader interface {
	GetCart(ctx context.Context, token string) (*domain.Cart, error)
}

// CatalogReader attaches catalog data to carts and products.
type CatalogReader interface {
	Enrich(ctx context.Context, cart *domain.Cart, collections []string) error
	ProductItems(ctx context.Context, handle string, collections []string) (*storefront.Product, []domain.CatalogItem, error)
}

// ProductQuote is the tier pricing of one product page.
type ProductQuote struct {
	ProductID int64          `json:"product_id"`
	Handle    string         `json:"handle"`
	Title     string         `json:"title"`
	Tier      string         `json:"tier,omitempty"`
	Variants  []VariantPrice `json:"variants"`
}

// Service serves the presentation feed: cart quotes and product prices.
type Service struct {
	carts   CartReader
	catalog CatalogReader
	hints   session.HintStore
	codes   CodeBook
	logger  *slog.Logger
}

// NewService creates a pricing service. hints may be nil.
func NewService(carts CartReader, catalog CatalogReader, hints session.HintStore, codes CodeBook, logger *slog.Logger) *Service {
	return &Service{
		carts:   carts,
		catalog: catalog,
		hints:   hints,
		codes:   codes,
		logger:  logger,
	}
}

// Quote prices the session's cart and records it as the presented state.
func (s *Service) Quote(ctx context.Context, sc *session.Context, cartToken string) (*Quote, error) {
	if strings.TrimSpace(cartToken) == "" {
		return nil, apperrors.InvalidInput("cart token is required")
	}

	cart, err := s.carts.GetCart(ctx, cartToken)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if err := s.catalog.Enrich(ctx, cart, sc.Policy.Collections); err != nil {
		return nil, fmt.Errorf("enrich cart: %w", err)
	}

	q := BuildQuote(sc.Tier, sc.Policy, cart, s.codes)
	s.logAmbiguous(ctx, sc, cart)

	decision := "none"
	if q.Decision != nil {
		decision = string(q.Decision.Kind())
	}
	QuotesTotal.WithLabelValues(decision).Inc()

	if s.hints != nil && sc.Tiered() && !cart.IsEmpty() {
		if err := s.hints.SavePresented(ctx, sc.ID, q.Presented()); err != nil {
			s.logger.WarnContext(ctx, "failed to store presented quote",
				slog.String("session_id", sc.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return q, nil
}

// ProductPrice returns the tier price of every variant of a product.
func (s *Service) ProductPrice(ctx context.Context, sc *session.Context, handle string) (*ProductQuote, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, apperrors.InvalidInput("product handle is required")
	}

	p, items, err := s.catalog.ProductItems(ctx, handle, sc.Policy.Collections)
	if err != nil {
		return nil, fmt.Errorf("read product %s: %w", handle, err)
	}

	pq := &ProductQuote{
		ProductID: p.ID,
		Handle:    p.Handle,
		Title:     p.Title,
		Variants:  ProductPrices(sc.Tier, sc.Policy, items),
	}
	if sc.Tiered() {
		pq.Tier = sc.Tier.Name
	}
	return pq, nil
}

// logAmbiguous reports lines that resolved to 0 only because membership
// was unverified.
func (s *Service) logAmbiguous(ctx context.Context, sc *session.Context, cart *domain.Cart) {
	if !sc.Tiered() {
		return
	}
	for _, line := range cart.Lines {
		if ResolveLine(sc.Tier, line, sc.Policy).AmbiguousEligibility {
			AmbiguousLines.Inc()
			s.logger.WarnContext(ctx, "collection eligibility unverified, no discount applied",
				slog.Int64("variant_id", line.Item.VariantID),
				slog.String("error", apperrors.ErrAmbiguousEligible.Error()),
			)
		}
	}
}
