package storefront

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhdungweb/Helios-account/internal/domain"
)

type fakeSource struct {
	mu          sync.Mutex
	products    map[string]*Product
	collections map[string][]int64
	failProduct map[string]bool
	failColl    bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	collCalls   atomic.Int32
}

func (f *fakeSource) GetProduct(_ context.Context, handle string) (*Product, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProduct[handle] {
		return nil, errors.New("connection reset")
	}
	p, ok := f.products[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (f *fakeSource) CollectionProductIDs(_ context.Context, handle string) ([]int64, error) {
	f.collCalls.Add(1)
	if f.failColl {
		return nil, errors.New("timeout")
	}
	return f.collections[handle], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enrichCart() *domain.Cart {
	return &domain.Cart{Lines: []domain.CartLine{
		{Key: "a", Item: domain.CatalogItem{ProductID: 1, VariantID: 11, Handle: "ring"}, Quantity: 1},
		{Key: "b", Item: domain.CatalogItem{ProductID: 2, VariantID: 22, Handle: "chain"}, Quantity: 1},
	}}
}

func TestCatalog_EnrichTagsAndCollections(t *testing.T) {
	src := &fakeSource{
		products: map[string]*Product{
			"ring":  {ID: 1, Handle: "ring", Tags: []string{"vip"}},
			"chain": {ID: 2, Handle: "chain", Tags: []string{"sale"}},
		},
		collections: map[string][]int64{"rings": {1, 7}},
	}
	cat := NewCatalog(src, nil, 2, quietLogger())

	cart := enrichCart()
	require.NoError(t, cat.Enrich(context.Background(), cart, []string{"Rings"}))

	assert.Equal(t, []string{"vip"}, cart.Lines[0].Item.Tags)
	assert.True(t, cart.Lines[0].Item.CollectionsKnown)
	assert.Equal(t, []string{"rings"}, cart.Lines[0].Item.Collections)
	assert.True(t, cart.Lines[1].Item.CollectionsKnown)
	assert.Empty(t, cart.Lines[1].Item.Collections)
}

func TestCatalog_ProductFailureDegrades(t *testing.T) {
	src := &fakeSource{
		products: map[string]*Product{
			"ring":  {ID: 1, Handle: "ring", Tags: []string{"vip"}},
			"chain": {ID: 2, Handle: "chain", Tags: []string{"sale"}},
		},
		failProduct: map[string]bool{"chain": true},
	}
	cat := NewCatalog(src, nil, 2, quietLogger())

	cart := enrichCart()
	cart.Lines[1].Item.Tags = []string{"stale"}
	require.NoError(t, cat.Enrich(context.Background(), cart, nil))

	assert.Equal(t, []string{"vip"}, cart.Lines[0].Item.Tags)
	assert.Nil(t, cart.Lines[1].Item.Tags)
	assert.False(t, cart.Lines[1].Item.CollectionsKnown)
}

func TestCatalog_CollectionFailureLeavesMembershipUnverified(t *testing.T) {
	src := &fakeSource{
		products: map[string]*Product{"ring": {ID: 1}, "chain": {ID: 2}},
		failColl: true,
	}
	cat := NewCatalog(src, nil, 2, quietLogger())

	cart := enrichCart()
	require.NoError(t, cat.Enrich(context.Background(), cart, []string{"rings"}))

	for _, l := range cart.Lines {
		assert.False(t, l.Item.CollectionsKnown)
	}
}

func TestCatalog_BoundedFanOut(t *testing.T) {
	src := &fakeSource{products: map[string]*Product{}}
	cart := &domain.Cart{}
	for i := 0; i < 12; i++ {
		h := "p" + strconv.Itoa(i)
		src.products[h] = &Product{ID: int64(i)}
		cart.Lines = append(cart.Lines, domain.CartLine{Item: domain.CatalogItem{ProductID: int64(i), Handle: h}, Quantity: 1})
	}
	cat := NewCatalog(src, nil, 3, quietLogger())

	require.NoError(t, cat.Enrich(context.Background(), cart, nil))
	assert.LessOrEqual(t, src.maxInFlight.Load(), int32(3))
}

func TestCatalog_CanceledContext(t *testing.T) {
	src := &fakeSource{products: map[string]*Product{"ring": {ID: 1}, "chain": {ID: 2}}}
	cat := NewCatalog(src, nil, 2, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cat.Enrich(ctx, enrichCart(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalog_UsesRedisMembershipCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := &fakeSource{
		products:    map[string]*Product{"ring": {ID: 1}, "chain": {ID: 2}},
		collections: map[string][]int64{"rings": {2}},
	}
	cache := NewRedisMembershipCache(client, time.Minute)
	cat := NewCatalog(src, cache, 2, quietLogger())

	for i := 0; i < 3; i++ {
		cart := enrichCart()
		require.NoError(t, cat.Enrich(context.Background(), cart, []string{"rings"}))
		assert.Equal(t, []string{"rings"}, cart.Lines[1].Item.Collections)
	}
	assert.Equal(t, int32(1), src.collCalls.Load())
	assert.True(t, mr.Exists("helios:collection:rings"))
	assert.Equal(t, time.Minute, mr.TTL("helios:collection:rings"))
}

func TestCatalog_InCollection(t *testing.T) {
	src := &fakeSource{collections: map[string][]int64{"nhan-vang": {5}}}
	cat := NewCatalog(src, nil, 1, quietLogger())

	member, known := cat.InCollection(context.Background(), 5, "Nhẫn Vàng")
	assert.True(t, member)
	assert.True(t, known)

	src.failColl = true
	member, known = cat.InCollection(context.Background(), 5, "Nhẫn Vàng")
	assert.False(t, member)
	assert.False(t, known)
}

func TestCatalog_ProductItems(t *testing.T) {
	src := &fakeSource{
		products: map[string]*Product{"ring": {ID: 1, Handle: "ring", Tags: []string{"vip"},
			Variants: []Variant{{ID: 11, Title: "S", Price: 1000}}}},
		collections: map[string][]int64{"rings": {1}},
	}
	cat := NewCatalog(src, nil, 1, quietLogger())

	p, items, err := cat.ProductItems(context.Background(), "ring", []string{"rings"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	require.Len(t, items, 1)
	assert.True(t, items[0].CollectionsKnown)
	assert.Equal(t, []string{"rings"}, items[0].Collections)

	_, _, err = cat.ProductItems(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestRedisMembershipCache_RoundTripAndErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisMembershipCache(client, time.Minute)
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "rings")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "empty", nil))
	ids, found, err := cache.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, ids)

	require.NoError(t, mr.Set(helperKey("broken"), "not-json"))
	_, _, err = cache.Get(ctx, "broken")
	assert.Error(t, err)
}

func helperKey(handle string) string {
	return membershipKeyPrefix + handle
}
