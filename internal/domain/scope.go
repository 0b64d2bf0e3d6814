package domain

import (
	"fmt"
	"strings"

	"github.com/dinhdungweb/Helios-account/pkg/slug"
)

// ScopeKind selects which catalog items a tier's default discount applies to.
type ScopeKind string

// Scope kinds as configured in the storefront theme.
const (
	ScopeAll           ScopeKind = "all"
	ScopeTagged        ScopeKind = "tagged"
	ScopeCollections   ScopeKind = "collections"
	ScopeExcludeTagged ScopeKind = "exclude_tagged"
)

// ScopePolicy is the single active scope rule of a storefront. Tags are
// stored trimmed and lowercased, collections as storefront handles.
type ScopePolicy struct {
	Kind        ScopeKind `json:"kind"`
	Tags        []string  `json:"tags,omitempty"`
	Collections []string  `json:"collections,omitempty"`
}

// ParseScopeKind validates a configured scope name.
func ParseScopeKind(s string) (ScopeKind, error) {
	switch k := ScopeKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ScopeAll, ScopeTagged, ScopeCollections, ScopeExcludeTagged:
		return k, nil
	default:
		return "", fmt.Errorf("unknown tier scope %q", s)
	}
}

// NewScopePolicy builds the policy for kind. Tags are used by tagged and
// exclude_tagged, collections by collections; the other list is ignored.
func NewScopePolicy(kind string, tags, collections []string) (ScopePolicy, error) {
	k, err := ParseScopeKind(kind)
	if err != nil {
		return ScopePolicy{}, err
	}
	switch k {
	case ScopeTagged:
		return TaggedOnly(tags...), nil
	case ScopeCollections:
		return CollectionRestricted(collections...), nil
	case ScopeExcludeTagged:
		return ExcludeTagged(tags...), nil
	default:
		return AllProducts(), nil
	}
}

// AllProducts applies the tier discount to every item.
func AllProducts() ScopePolicy {
	return ScopePolicy{Kind: ScopeAll}
}

// TaggedOnly applies the discount to items carrying at least one allowed tag.
func TaggedOnly(allowedTags ...string) ScopePolicy {
	return ScopePolicy{Kind: ScopeTagged, Tags: NormalizeTags(allowedTags)}
}

// CollectionRestricted applies the discount to members of the allowed collections.
func CollectionRestricted(allowedCollections ...string) ScopePolicy {
	return ScopePolicy{Kind: ScopeCollections, Collections: slug.Handles(allowedCollections)}
}

// ExcludeTagged applies the discount to every item without an excluded tag.
func ExcludeTagged(excludedTags ...string) ScopePolicy {
	return ScopePolicy{Kind: ScopeExcludeTagged, Tags: NormalizeTags(excludedTags)}
}

// NeedsCollections reports whether resolving this policy requires
// collection membership data.
func (p ScopePolicy) NeedsCollections() bool {
	return p.Kind == ScopeCollections && len(p.Collections) > 0
}

// NormalizeTags trims and lowercases tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
