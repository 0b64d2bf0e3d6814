package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dinhdungweb/Helios-account/internal/domain"
)

var gold = &domain.CustomerTier{Name: "GOLD", DefaultPercent: 10}

func item(tags ...string) domain.CatalogItem {
	return domain.CatalogItem{ProductID: 1, VariantID: 11, UnitPrice: 10000, Tags: tags}
}

func TestResolve_NilTier(t *testing.T) {
	r := Resolve(nil, item("tier-gold-25"), domain.AllProducts())
	assert.Equal(t, 0, r.Percent)
	assert.Equal(t, SourceNone, r.Source)
}

func TestResolve_OverrideBeatsEveryPolicy(t *testing.T) {
	policies := map[string]domain.ScopePolicy{
		"all":            domain.AllProducts(),
		"tagged":         domain.TaggedOnly("vip"),
		"collections":    domain.CollectionRestricted("rings"),
		"exclude_tagged": domain.ExcludeTagged("tier-gold-25"),
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			r := Resolve(gold, item("Tier-Gold-25 "), policy)
			assert.Equal(t, 25, r.Percent)
			assert.Equal(t, SourceOverride, r.Source)
		})
	}
}

func TestOverridePercent_Validation(t *testing.T) {
	tests := []struct {
		tag    string
		want   int
		wantOK bool
	}{
		{"tier-gold-25", 25, true},
		{"tier-gold-100", 100, true},
		{"tier-gold-1", 1, true},
		{"tier-gold-0", 0, false},
		{"tier-gold-101", 0, false},
		{"tier-gold-2.5", 0, false},
		{"tier-gold--5", 0, false},
		{"tier-gold-", 0, false},
		{"tier-gold-1-2", 0, false},
		{"tier-silver-25", 0, false},
		{"tier-goldplus-25", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := OverridePercent(gold, []string{tt.tag})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverridePercent_NormalizesTierName(t *testing.T) {
	tier := &domain.CustomerTier{Name: "Black_Diamond", DefaultPercent: 20}
	got, ok := OverridePercent(tier, []string{"tier-blackdiamond-30"})
	assert.True(t, ok)
	assert.Equal(t, 30, got)
}

func TestResolve_AllProducts(t *testing.T) {
	for _, tags := range [][]string{nil, {"sale"}, {"vip", "clearance"}} {
		assert.Equal(t, 10, ResolveDiscount(gold, item(tags...), domain.AllProducts()))
	}
}

func TestResolve_TaggedOnly(t *testing.T) {
	policy := domain.TaggedOnly("vip")

	assert.Equal(t, 10, ResolveDiscount(gold, item("vip", "sale"), policy))
	assert.Equal(t, 10, ResolveDiscount(gold, item(" VIP "), policy))
	assert.Equal(t, 0, ResolveDiscount(gold, item("sale"), policy))
	assert.Equal(t, 0, ResolveDiscount(gold, item(), policy))
}

func TestResolve_TaggedOnlyEmptyAllowListMatchesNothing(t *testing.T) {
	assert.Equal(t, 0, ResolveDiscount(gold, item("vip"), domain.TaggedOnly()))
}

func TestResolve_ExcludeTagged(t *testing.T) {
	policy := domain.ExcludeTagged("clearance")

	assert.Equal(t, 0, ResolveDiscount(gold, item("clearance"), policy))
	assert.Equal(t, 0, ResolveDiscount(gold, item("Clearance"), policy))
	assert.Equal(t, 10, ResolveDiscount(gold, item("sale"), policy))
	assert.Equal(t, 10, ResolveDiscount(gold, item(), policy))
}

func TestResolve_ExcludeTaggedEmptyListExcludesNothing(t *testing.T) {
	assert.Equal(t, 10, ResolveDiscount(gold, item("clearance"), domain.ExcludeTagged()))
}

func TestResolve_CollectionRestricted(t *testing.T) {
	policy := domain.CollectionRestricted("rings")

	member := item()
	member.Collections = []string{"rings"}
	member.CollectionsKnown = true
	assert.Equal(t, 10, ResolveDiscount(gold, member, policy))

	outsider := item()
	outsider.Collections = []string{"watches"}
	outsider.CollectionsKnown = true
	r := Resolve(gold, outsider, policy)
	assert.Equal(t, 0, r.Percent)
	assert.False(t, r.AmbiguousEligibility)
}

func TestResolve_CollectionRestrictedFailsClosedWhenUnverified(t *testing.T) {
	unverified := item()
	unverified.Collections = []string{"rings"}

	r := Resolve(gold, unverified, domain.CollectionRestricted("rings"))

	assert.Equal(t, 0, r.Percent)
	assert.Equal(t, SourceNone, r.Source)
	assert.True(t, r.AmbiguousEligibility)
}

func TestResolve_UnknownPolicyKindIsIneligible(t *testing.T) {
	assert.Equal(t, 0, ResolveDiscount(gold, item(), domain.ScopePolicy{Kind: "vendors"}))
}

func TestResolve_TierWithoutDefault(t *testing.T) {
	bronze := &domain.CustomerTier{Name: "BRONZE"}
	assert.Equal(t, 0, ResolveDiscount(bronze, item(), domain.AllProducts()))
	assert.Equal(t, 15, ResolveDiscount(bronze, item("tier-bronze-15"), domain.AllProducts()))
}

func TestResolveLine_FreeGift(t *testing.T) {
	line := domain.CartLine{
		Item:       item(),
		Quantity:   1,
		Properties: map[string]string{domain.PropertyFreeGift: "true"},
	}

	r := ResolveLine(gold, line, domain.TaggedOnly("vip"))
	assert.Equal(t, 100, r.Percent)
	assert.Equal(t, SourceGift, r.Source)

	assert.Equal(t, 0, ResolveLine(nil, line, domain.AllProducts()).Percent)
}
