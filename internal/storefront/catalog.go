package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/pkg/slug"
)

// ProductSource is the read side of the storefront used by Catalog.
type ProductSource interface {
	GetProduct(ctx context.Context, handle string) (*Product, error)
	CollectionProductIDs(ctx context.Context, handle string) ([]int64, error)
}

// Catalog attaches tags and collection membership to cart lines. Lookup
// failures never fail the caller: a product that cannot be read carries no
// tags and unverified membership, which resolves to no discount.
type Catalog struct {
	source      ProductSource
	cache       MembershipCache
	concurrency int
	logger      *slog.Logger
}

// NewCatalog creates a catalog. cache may be nil.
func NewCatalog(source ProductSource, cache MembershipCache, concurrency int, logger *slog.Logger) *Catalog {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Catalog{
		source:      source,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Enrich fills Tags, Collections and CollectionsKnown on every line of
// cart. collections are the handles the active policy cares about. Only
// context cancellation is returned as an error.
func (c *Catalog) Enrich(ctx context.Context, cart *domain.Cart, collections []string) error {
	if cart.IsEmpty() {
		return nil
	}

	products := c.fetchProducts(ctx, cart.Handles())
	members, verified := c.fetchMemberships(ctx, collections)
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range cart.Lines {
		item := &cart.Lines[i].Item
		p, ok := products[item.Handle]
		if !ok {
			item.Tags = nil
			item.CollectionsKnown = false
			continue
		}
		item.Tags = p.Tags
		if item.Title == "" {
			item.Title = p.Title
		}
		attachCollections(item, members, verified)
	}
	return nil
}

// ProductItems reads one product and returns its variants as enriched
// catalog items.
func (c *Catalog) ProductItems(ctx context.Context, handle string, collections []string) (*Product, []domain.CatalogItem, error) {
	p, err := c.source.GetProduct(ctx, handle)
	if err != nil {
		return nil, nil, err
	}
	members, verified := c.fetchMemberships(ctx, collections)

	items := p.CatalogItems()
	for i := range items {
		attachCollections(&items[i], members, verified)
	}
	return p, items, nil
}

// InCollection reports whether productID belongs to the collection handle.
// known is false when membership could not be read.
func (c *Catalog) InCollection(ctx context.Context, productID int64, handle string) (member, known bool) {
	set, err := c.members(ctx, slug.Handle(handle))
	if err != nil {
		return false, false
	}
	_, member = set[productID]
	return member, true
}

func attachCollections(item *domain.CatalogItem, members map[string]map[int64]struct{}, verified bool) {
	if !verified {
		item.Collections = nil
		item.CollectionsKnown = false
		return
	}
	item.Collections = item.Collections[:0]
	for handle, ids := range members {
		if _, ok := ids[item.ProductID]; ok {
			item.Collections = append(item.Collections, handle)
		}
	}
	slices.Sort(item.Collections)
	item.CollectionsKnown = true
}

func (c *Catalog) fetchProducts(ctx context.Context, handles []string) map[string]*Product {
	var (
		mu  sync.Mutex
		g   errgroup.Group
		out = make(map[string]*Product, len(handles))
	)

	g.SetLimit(c.concurrency)
	for _, h := range handles {
		g.Go(func() error {
			p, err := c.source.GetProduct(ctx, h)
			if err != nil {
				DegradedLookups.WithLabelValues("product").Inc()
				c.logger.WarnContext(ctx, "product lookup failed, treating as untagged",
					slog.String("handle", h),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			out[h] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fetchMemberships loads every collection. verified is false if any of
// them could not be read.
func (c *Catalog) fetchMemberships(ctx context.Context, collections []string) (map[string]map[int64]struct{}, bool) {
	handles := slug.Handles(collections)
	out := make(map[string]map[int64]struct{}, len(handles))
	if len(handles) == 0 {
		return out, true
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, h := range handles {
		g.Go(func() error {
			set, err := c.members(gctx, h)
			if err != nil {
				return err
			}
			mu.Lock()
			out[h] = set
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		DegradedLookups.WithLabelValues("collection").Inc()
		c.logger.WarnContext(ctx, "collection membership unverified",
			slog.Any("collections", handles),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return out, true
}

func (c *Catalog) members(ctx context.Context, handle string) (map[int64]struct{}, error) {
	if c.cache != nil {
		ids, found, err := c.cache.Get(ctx, handle)
		switch {
		case err != nil:
			MembershipCacheResults.WithLabelValues("error").Inc()
			c.logger.WarnContext(ctx, "collection cache read failed",
				slog.String("collection", handle),
				slog.String("error", err.Error()),
			)
		case found:
			MembershipCacheResults.WithLabelValues("hit").Inc()
			return toSet(ids), nil
		default:
			MembershipCacheResults.WithLabelValues("miss").Inc()
		}
	}

	ids, err := c.source.CollectionProductIDs(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", handle, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, handle, ids); err != nil {
			c.logger.WarnContext(ctx, "collection cache write failed",
				slog.String("collection", handle),
				slog.String("error", err.Error()),
			)
		}
	}
	return toSet(ids), nil
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
