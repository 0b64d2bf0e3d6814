package pricing

import (
	"github.com/dinhdungweb/Helios-account/internal/domain"
)

// QuoteLine is the presentation of one cart line.
type QuoteLine struct {
	Key             string `json:"key"`
	VariantID       int64  `json:"variant_id"`
	ProductID       int64  `json:"product_id"`
	Title           string `json:"title"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	TierUnitPrice   int64  `json:"tier_unit_price"`
	DiscountPercent int    `json:"discount_percent"`
	LineTotal       int64  `json:"line_total"`
	Source          Source `json:"source"`
	FreeGift        bool   `json:"free_gift,omitempty"`
}

// Quote is the priced cart shown to the customer. Total is the sum of line
// totals and equals what either checkout path charges.
type Quote struct {
	Lines       []QuoteLine             `json:"lines"`
	Subtotal    int64                   `json:"subtotal"`
	Discount    int64                   `json:"discount"`
	Total       int64                   `json:"total"`
	Decision    domain.CheckoutDecision `json:"decision"`
	Fingerprint string                  `json:"fingerprint"`
}

// BuildQuote prices every line of cart and previews the checkout decision.
func BuildQuote(tier *domain.CustomerTier, policy domain.ScopePolicy, cart *domain.Cart, codes CodeBook) *Quote {
	resolved := ResolveCart(tier, policy, cart)

	q := &Quote{
		Lines:       make([]QuoteLine, len(resolved)),
		Fingerprint: cart.Fingerprint(),
	}
	for i, lr := range resolved {
		percent := lr.Resolution.Percent
		total := domain.LineTotal(lr.Line.Item.UnitPrice, lr.Line.Quantity, percent)
		q.Lines[i] = QuoteLine{
			Key:             lr.Line.Key,
			VariantID:       lr.Line.Item.VariantID,
			ProductID:       lr.Line.Item.ProductID,
			Title:           lr.Line.Item.Title,
			Quantity:        lr.Line.Quantity,
			UnitPrice:       lr.Line.Item.UnitPrice,
			TierUnitPrice:   domain.TierPrice(lr.Line.Item.UnitPrice, percent),
			DiscountPercent: percent,
			LineTotal:       total,
			Source:          lr.Resolution.Source,
			FreeGift:        lr.Line.IsFreeGift(),
		}
		q.Subtotal += lr.Line.Subtotal()
		q.Total += total
	}
	q.Discount = q.Subtotal - q.Total

	if !cart.IsEmpty() {
		q.Decision = Decide(tier, cart, resolved, codes)
	}
	return q
}

// Presented converts the quote into the advisory state consulted by the
// draft order builder.
func (q *Quote) Presented() *domain.PresentedState {
	p := &domain.PresentedState{
		Fingerprint: q.Fingerprint,
		Percents:    make(map[int64]int, len(q.Lines)),
	}
	for _, l := range q.Lines {
		if l.FreeGift {
			continue
		}
		p.Percents[l.VariantID] = l.DiscountPercent
	}
	return p
}

// VariantPrice is the tier price of one product variant.
type VariantPrice struct {
	VariantID       int64  `json:"variant_id"`
	Title           string `json:"title"`
	Price           int64  `json:"price"`
	TierPrice       int64  `json:"tier_price"`
	DiscountPercent int    `json:"discount_percent"`
	Source          Source `json:"source"`
}

// ProductPrices resolves each variant of a product. variants share the
// product's tags and collections.
func ProductPrices(tier *domain.CustomerTier, policy domain.ScopePolicy, variants []domain.CatalogItem) []VariantPrice {
	out := make([]VariantPrice, len(variants))
	for i, v := range variants {
		r := Resolve(tier, v, policy)
		out[i] = VariantPrice{
			VariantID:       v.VariantID,
			Title:           v.Title,
			Price:           v.UnitPrice,
			TierPrice:       domain.TierPrice(v.UnitPrice, r.Percent),
			DiscountPercent: r.Percent,
			Source:          r.Source,
		}
	}
	return out
}
