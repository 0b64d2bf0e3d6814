package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Built-in tier names.
const (
	TierMember       = "MEMBER"
	TierSilver       = "SILVER"
	TierGold         = "GOLD"
	TierPlatinum     = "PLATINUM"
	TierDiamond      = "DIAMOND"
	TierBlackDiamond = "BLACK DIAMOND"
)

// CustomerTier is the loyalty level of the signed-in customer. A nil
// *CustomerTier means the customer is anonymous or untiered.
type CustomerTier struct {
	Name           string `json:"name"`
	DefaultPercent int    `json:"default_percent"`
}

// NormalizedName returns the tier name lowercased with all whitespace and
// underscores removed ("Black Diamond" -> "blackdiamond").
func (t *CustomerTier) NormalizedName() string {
	if t == nil {
		return ""
	}
	return NormalizeTierName(t.Name)
}

// CodeName is the upper-case form used inside generated discount codes.
func (t *CustomerTier) CodeName() string {
	return strings.ToUpper(t.NormalizedName())
}

// NormalizeTierName lowercases name and strips whitespace and underscores.
func NormalizeTierName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TierTable maps normalized tier names to their default discount percent.
type TierTable map[string]int

// DefaultTierTable returns the fallback percentages used when no tier
// configuration is supplied.
func DefaultTierTable() TierTable {
	t, _ := NewTierTable(map[string]int{
		TierBlackDiamond: 20,
		TierDiamond:      20,
		TierPlatinum:     15,
		TierGold:         10,
		TierSilver:       7,
		TierMember:       5,
	})
	return t
}

// NewTierTable builds a table from display names, rejecting percentages
// outside 0..100 and names that collide after normalization.
func NewTierTable(raw map[string]int) (TierTable, error) {
	t := make(TierTable, len(raw))
	for name, percent := range raw {
		key := NormalizeTierName(name)
		if key == "" {
			return nil, fmt.Errorf("tier name %q is empty after normalization", name)
		}
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("tier %q: percent %d out of range 0-100", name, percent)
		}
		if existing, ok := t[key]; ok && existing != percent {
			return nil, fmt.Errorf("tier %q collides with another tier of percent %d", name, existing)
		}
		t[key] = percent
	}
	return t, nil
}

// Lookup returns the tier for name. Unknown names are still a tier (their
// product override tags apply) but with a default percent of 0. An empty
// name yields nil.
func (t TierTable) Lookup(name string) *CustomerTier {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &CustomerTier{Name: name, DefaultPercent: t[NormalizeTierName(name)]}
}

// Known reports whether name is configured.
func (t TierTable) Known(name string) bool {
	_, ok := t[NormalizeTierName(name)]
	return ok
}
