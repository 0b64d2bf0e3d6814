package domain

import "encoding/json"

// DecisionKind tags the variant of a CheckoutDecision.
type DecisionKind string

// Decision kinds.
const (
	DecisionSingleCode  DecisionKind = "single_discount_code"
	DecisionManualOrder DecisionKind = "manual_order"
)

// CodeOrigin records where a single discount code came from.
type CodeOrigin string

// Code origins.
const (
	OriginProductTag CodeOrigin = "product_tag"
	OriginDefault    CodeOrigin = "default"
	OriginNone       CodeOrigin = "none"
)

// CheckoutDecision is either a SingleDiscountCode or a ManualOrder.
type CheckoutDecision interface {
	Kind() DecisionKind
	isCheckoutDecision()
}

// SingleDiscountCode means one cart-wide code expresses every line's
// discount. An empty Code means plain checkout.
type SingleDiscountCode struct {
	Code    string     `json:"code"`
	Percent int        `json:"percent"`
	Origin  CodeOrigin `json:"origin"`
}

func (SingleDiscountCode) Kind() DecisionKind { return DecisionSingleCode }
func (SingleDiscountCode) isCheckoutDecision() {}

// MarshalJSON adds the decision kind.
func (d SingleDiscountCode) MarshalJSON() ([]byte, error) {
	type plain SingleDiscountCode
	return json.Marshal(struct {
		Kind DecisionKind `json:"kind"`
		plain
	}{d.Kind(), plain(d)})
}

// OrderLine is one explicitly priced line of a manual order.
type OrderLine struct {
	VariantID       int64 `json:"variant_id"`
	Quantity        int   `json:"quantity"`
	UnitPrice       int64 `json:"unit_price"`
	DiscountPercent int   `json:"discount_percent"`
	FreeGift        bool  `json:"free_gift,omitempty"`
}

// LineTotal is the amount charged for the line.
func (l OrderLine) LineTotal() int64 {
	return LineTotal(l.UnitPrice, l.Quantity, l.DiscountPercent)
}

// ManualOrder lists every cart line with its percent, in cart order.
type ManualOrder struct {
	Lines []OrderLine `json:"lines"`
}

func (ManualOrder) Kind() DecisionKind { return DecisionManualOrder }
func (ManualOrder) isCheckoutDecision() {}

// MarshalJSON adds the decision kind.
func (m ManualOrder) MarshalJSON() ([]byte, error) {
	type plain ManualOrder
	return json.Marshal(struct {
		Kind DecisionKind `json:"kind"`
		plain
	}{m.Kind(), plain(m)})
}

// Percents indexes the percents of the order's paid lines by variant. Free
// gift lines are left out; their percent never carries over.
func (m ManualOrder) Percents() map[int64]int {
	out := make(map[int64]int, len(m.Lines))
	for _, l := range m.Lines {
		if l.FreeGift {
			continue
		}
		out[l.VariantID] = l.DiscountPercent
	}
	return out
}

// Total sums the line totals.
func (m ManualOrder) Total() int64 {
	var total int64
	for _, l := range m.Lines {
		total += l.LineTotal()
	}
	return total
}
