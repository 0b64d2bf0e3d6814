package domain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/dinhdungweb/Helios-account/pkg/slug"
)

// Line item properties written by the free-gift promotion.
const (
	PropertyFreeGift    = "_is_free_gift"
	PropertyGiftLabel   = "_gift_label"
	PropertyCollections = "_collections"
)

// CatalogItem is a product variant as seen by the resolver. Prices are in
// minor currency units. Collections holds storefront handles and is only
// meaningful when CollectionsKnown is true.
type CatalogItem struct {
	ProductID        int64    `json:"product_id"`
	VariantID        int64    `json:"variant_id"`
	Handle           string   `json:"handle"`
	Title            string   `json:"title"`
	UnitPrice        int64    `json:"unit_price"`
	Tags             []string `json:"tags,omitempty"`
	Collections      []string `json:"collections,omitempty"`
	CollectionsKnown bool     `json:"collections_known"`
}

// HasAnyTag reports whether the item carries one of tags (trimmed,
// case-insensitive).
func (i CatalogItem) HasAnyTag(tags []string) bool {
	for _, own := range i.Tags {
		own = normalizeTag(own)
		for _, t := range tags {
			if own == normalizeTag(t) {
				return true
			}
		}
	}
	return false
}

// InAnyCollection reports membership in one of handles. known is false when
// membership could not be verified, in which case member is always false.
func (i CatalogItem) InAnyCollection(handles []string) (member, known bool) {
	if !i.CollectionsKnown {
		return false, false
	}
	for _, own := range i.Collections {
		own = slug.Handle(own)
		for _, h := range handles {
			if own == slug.Handle(h) {
				return true, true
			}
		}
	}
	return false, true
}

// CartLine is one line of the live cart. The discount percent is never
// stored on the line; it is recomputed from tier, policy and item.
type CartLine struct {
	Key        string            `json:"key"`
	Item       CatalogItem       `json:"item"`
	Quantity   int               `json:"quantity"`
	LinePrice  int64             `json:"line_price"`
	Properties map[string]string `json:"properties,omitempty"`
}

// IsFreeGift reports whether the line was added by the free-gift promotion.
func (l CartLine) IsFreeGift() bool {
	return strings.EqualFold(strings.TrimSpace(l.Properties[PropertyFreeGift]), "true")
}

// Subtotal is the undiscounted unit price times quantity.
func (l CartLine) Subtotal() int64 {
	return l.Item.UnitPrice * int64(l.Quantity)
}

// FinalPrice is the platform's line price, falling back to the subtotal.
func (l CartLine) FinalPrice() int64 {
	if l.LinePrice > 0 {
		return l.LinePrice
	}
	return l.Subtotal()
}

// PropertyCollectionHandles returns the handles listed in the _collections
// line property.
func (l CartLine) PropertyCollectionHandles() []string {
	raw := l.Properties[PropertyCollections]
	if raw == "" {
		return nil
	}
	return slug.Handles(strings.Split(raw, ","))
}

// Cart is one consistent snapshot of the live cart.
type Cart struct {
	Token string     `json:"token"`
	Lines []CartLine `json:"lines"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Subtotal sums the undiscounted line subtotals.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// Handles returns the distinct product handles in the cart, in cart order.
func (c *Cart) Handles() []string {
	seen := make(map[string]struct{}, len(c.Lines))
	out := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.Item.Handle == "" {
			continue
		}
		if _, ok := seen[l.Item.Handle]; ok {
			continue
		}
		seen[l.Item.Handle] = struct{}{}
		out = append(out, l.Item.Handle)
	}
	return out
}

// Fingerprint is a stable hash of the variant to quantity multiset. It does
// not depend on line order, so a re-ordered but otherwise unchanged cart
// keeps its fingerprint.
func (c *Cart) Fingerprint() string {
	if c == nil {
		return ""
	}
	entries := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		gift := "0"
		if l.IsFreeGift() {
			gift = "1"
		}
		entries = append(entries, strconv.FormatInt(l.Item.VariantID, 10)+":"+
			strconv.Itoa(l.Quantity)+":"+gift)
	}
	slices.Sort(entries)

	d := xxhash.New()
	for _, e := range entries {
		_, _ = d.WriteString(e)
		_, _ = d.WriteString(";")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// PresentedState is the advisory per-variant percent table last shown to the
// customer, tagged with the fingerprint of the cart it was computed for.
type PresentedState struct {
	Fingerprint string        `json:"fingerprint"`
	Percents    map[int64]int `json:"percents"`
}

// Matches reports whether the presented state was computed for cart.
func (p *PresentedState) Matches(cart *Cart) bool {
	return p != nil && p.Fingerprint != "" && p.Fingerprint == cart.Fingerprint()
}
