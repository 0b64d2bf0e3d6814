package checkout

import (
	"fmt"
	"net/url"

	"github.com/dinhdungweb/Helios-account/internal/domain"
)

// discountParam is the checkout query parameter naming a discount code.
const discountParam = "discount"

// Action is what the router tells the attempt to do next.
type Action interface {
	isAction()
}

// CodeAction navigates to the platform checkout with an optional code.
type CodeAction struct {
	URL  *url.URL
	Code string
}

// DraftOrderAction builds a manual order with the decision's percents.
type DraftOrderAction struct {
	Order   domain.ManualOrder
	Carried map[int64]int
}

func (CodeAction) isAction()       {}
func (DraftOrderAction) isAction() {}

// Route maps a decision onto an action. base is the platform checkout URL.
func Route(decision domain.CheckoutDecision, base *url.URL) (Action, error) {
	switch d := decision.(type) {
	case domain.SingleDiscountCode:
		return CodeAction{URL: WithDiscountCode(base, d.Code), Code: d.Code}, nil
	case domain.ManualOrder:
		return DraftOrderAction{Order: d, Carried: d.Percents()}, nil
	default:
		return nil, fmt.Errorf("unknown checkout decision %T", decision)
	}
}

// WithDiscountCode returns a copy of base with the discount parameter set
// to code, or removed when code is empty. Other parameters are kept.
func WithDiscountCode(base *url.URL, code string) *url.URL {
	u := *base
	q := u.Query()
	if code == "" {
		q.Del(discountParam)
	} else {
		q.Set(discountParam, code)
	}
	u.RawQuery = q.Encode()
	return &u
}
