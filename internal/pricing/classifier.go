package pricing

import (
	"strconv"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
)

const autoCodePrefix = "AUTO_"

// CodeBook maps normalized tier names to the platform discount code
// provisioned for that tier's default percent.
type CodeBook map[string]string

// NewCodeBook builds a CodeBook from tier display names.
func NewCodeBook(raw map[string]string) CodeBook {
	cb := make(CodeBook, len(raw))
	for tier, code := range raw {
		if code == "" {
			continue
		}
		cb[domain.NormalizeTierName(tier)] = code
	}
	return cb
}

// LineResolution pairs a cart line with its resolution.
type LineResolution struct {
	Line       domain.CartLine
	Resolution Resolution
}

// ResolveCart resolves every line of cart, in cart order.
func ResolveCart(tier *domain.CustomerTier, policy domain.ScopePolicy, cart *domain.Cart) []LineResolution {
	out := make([]LineResolution, len(cart.Lines))
	for i, line := range cart.Lines {
		out[i] = LineResolution{Line: line, Resolution: ResolveLine(tier, line, policy)}
	}
	return out
}

// Classify decides between a single cart-wide discount code and a manually
// priced order. Calling it twice on the same snapshot yields equal decisions.
func Classify(tier *domain.CustomerTier, policy domain.ScopePolicy, cart *domain.Cart, codes CodeBook) (domain.CheckoutDecision, error) {
	if cart.IsEmpty() {
		return nil, apperrors.EmptyCart()
	}
	return Decide(tier, cart, ResolveCart(tier, policy, cart), codes), nil
}

// Decide turns line resolutions into a decision. A single code is only
// possible when every line was resolved and all share one percent.
func Decide(tier *domain.CustomerTier, cart *domain.Cart, lines []LineResolution, codes CodeBook) domain.CheckoutDecision {
	if tier == nil {
		return domain.SingleDiscountCode{Origin: domain.OriginNone}
	}

	if len(lines) == len(cart.Lines) && len(lines) > 0 {
		percent := lines[0].Resolution.Percent
		uniform := true
		for _, lr := range lines[1:] {
			if lr.Resolution.Percent != percent {
				uniform = false
				break
			}
		}
		if uniform {
			code, origin := CodeFor(tier, percent, codes)
			return domain.SingleDiscountCode{Code: code, Percent: percent, Origin: origin}
		}
	}

	return ManualOrderFor(lines)
}

// ManualOrderFor lists every resolved line explicitly.
func ManualOrderFor(lines []LineResolution) domain.ManualOrder {
	order := domain.ManualOrder{Lines: make([]domain.OrderLine, len(lines))}
	for i, lr := range lines {
		order.Lines[i] = domain.OrderLine{
			VariantID:       lr.Line.Item.VariantID,
			Quantity:        lr.Line.Quantity,
			UnitPrice:       lr.Line.Item.UnitPrice,
			DiscountPercent: lr.Resolution.Percent,
			FreeGift:        lr.Resolution.Source == SourceGift,
		}
	}
	return order
}

// CodeFor names the discount code for a cart-wide percent:
//   - 0 yields no code,
//   - the tier default with a provisioned code yields that code,
//   - anything else yields AUTO_<TIER>_<percent>.
func CodeFor(tier *domain.CustomerTier, percent int, codes CodeBook) (string, domain.CodeOrigin) {
	if tier == nil || percent <= 0 {
		return "", domain.OriginNone
	}
	if percent == tier.DefaultPercent {
		if code, ok := codes[tier.NormalizedName()]; ok {
			return code, domain.OriginDefault
		}
	}
	return autoCodePrefix + tier.CodeName() + "_" + strconv.Itoa(percent), domain.OriginProductTag
}
