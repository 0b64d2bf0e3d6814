package pricing

import (
	"strconv"
	"strings"

	"github.com/dinhdungweb/Helios-account/internal/domain"
)

// Source names the rule that produced a line's percent.
type Source string

// Resolution sources.
const (
	SourceOverride Source = "override"
	SourceScope    Source = "scope"
	SourceGift     Source = "gift"
	SourceNone     Source = "none"
)

const overrideTagPrefix = "tier-"

// Resolution is the outcome of resolving one item.
type Resolution struct {
	Percent int    `json:"percent"`
	Source  Source `json:"source"`

	// AmbiguousEligibility is set when a collection-restricted policy could
	// not verify membership and the item was treated as ineligible.
	AmbiguousEligibility bool `json:"ambiguous_eligibility,omitempty"`
}

// ResolveDiscount returns the percent tier earns on item under policy.
func ResolveDiscount(tier *domain.CustomerTier, item domain.CatalogItem, policy domain.ScopePolicy) int {
	return Resolve(tier, item, policy).Percent
}

// Resolve applies, in order: the product override tag for the tier, then
// the scope policy. It has no side effects.
func Resolve(tier *domain.CustomerTier, item domain.CatalogItem, policy domain.ScopePolicy) Resolution {
	if tier == nil {
		return Resolution{Source: SourceNone}
	}

	if p, ok := OverridePercent(tier, item.Tags); ok {
		return Resolution{Percent: p, Source: SourceOverride}
	}

	eligible, ambiguous := Eligible(item, policy)
	if !eligible || tier.DefaultPercent <= 0 {
		return Resolution{Source: SourceNone, AmbiguousEligibility: ambiguous}
	}
	return Resolution{Percent: domain.ClampPercent(tier.DefaultPercent), Source: SourceScope}
}

// ResolveLine resolves a cart line. In a tier-bearing cart a free-gift line
// is fully discounted.
func ResolveLine(tier *domain.CustomerTier, line domain.CartLine, policy domain.ScopePolicy) Resolution {
	if tier != nil && line.IsFreeGift() {
		return Resolution{Percent: 100, Source: SourceGift}
	}
	return Resolve(tier, line.Item, policy)
}

// OverridePercent looks for a tag "tier-<normalizedTier>-<n>" with n a plain
// integer in 1..100.
func OverridePercent(tier *domain.CustomerTier, tags []string) (int, bool) {
	name := tier.NormalizedName()
	if name == "" {
		return 0, false
	}
	prefix := overrideTagPrefix + name + "-"

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		rest, ok := strings.CutPrefix(tag, prefix)
		if !ok || !isDigits(rest) {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > 100 {
			continue
		}
		return n, true
	}
	return 0, false
}

// Eligible evaluates policy against item. ambiguous is true when membership
// in a restricted collection could not be verified; such items fail closed.
func Eligible(item domain.CatalogItem, policy domain.ScopePolicy) (eligible, ambiguous bool) {
	switch policy.Kind {
	case domain.ScopeAll:
		return true, false
	case domain.ScopeTagged:
		return item.HasAnyTag(policy.Tags), false
	case domain.ScopeExcludeTagged:
		return !item.HasAnyTag(policy.Tags), false
	case domain.ScopeCollections:
		if len(policy.Collections) == 0 {
			return false, false
		}
		member, known := item.InAnyCollection(policy.Collections)
		return member, !known
	default:
		return false, false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
