package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dinhdungweb/Helios-account/internal/domain"
)

const keyPrefix = "helios:session:"

// Hints are the advisory values cached for a session. None of them is
// trusted for a monetary decision without re-resolving.
type Hints struct {
	Tier             string `redis:"tier" json:"tier"`
	TierPercent      int    `redis:"tier_percent" json:"tier_percent"`
	Scope            string `redis:"scope" json:"scope"`
	ScopeTags        string `redis:"scope_tags" json:"scope_tags"`
	ScopeCollections string `redis:"scope_collections" json:"scope_collections"`
	DiscountCode     string `redis:"discount_code" json:"discount_code"`
	DiscountOrigin   string `redis:"discount_origin" json:"discount_origin"`
}

// HintsFor captures the resolved tier and policy of sc.
func HintsFor(sc *Context) Hints {
	h := Hints{
		Scope:            string(sc.Policy.Kind),
		ScopeTags:        strings.Join(sc.Policy.Tags, ","),
		ScopeCollections: strings.Join(sc.Policy.Collections, ","),
	}
	if sc.Tier != nil {
		h.Tier = sc.Tier.Name
		h.TierPercent = sc.Tier.DefaultPercent
	}
	return h
}

// HintStore persists session hints.
type HintStore interface {
	SaveHints(ctx context.Context, sessionID string, h Hints) error
	LoadHints(ctx context.Context, sessionID string) (*Hints, error)
	SaveDiscount(ctx context.Context, sessionID, code, origin string) error
	SavePresented(ctx context.Context, sessionID string, p *domain.PresentedState) error
	LoadPresented(ctx context.Context, sessionID string) (*domain.PresentedState, error)
}

// RedisHintStore implements HintStore using a Redis hash per session plus
// a JSON value for the presented quote.
type RedisHintStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisHintStore creates a new Redis-backed hint store.
func NewRedisHintStore(client redis.UniversalClient, ttl time.Duration) *RedisHintStore {
	return &RedisHintStore{
		client: client,
		ttl:    ttl,
	}
}

func hintsKey(sessionID string) string     { return keyPrefix + sessionID }
func presentedKey(sessionID string) string { return keyPrefix + sessionID + ":presented" }

// SaveHints replaces the hints of a session.
func (s *RedisHintStore) SaveHints(ctx context.Context, sessionID string, h Hints) error {
	key := hintsKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, h)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save hints: %w", err)
	}
	return nil
}

// LoadHints returns the hints of a session, or nil if none are stored.
func (s *RedisHintStore) LoadHints(ctx context.Context, sessionID string) (*Hints, error) {
	res := s.client.HGetAll(ctx, hintsKey(sessionID))
	values, err := res.Result()
	if err != nil {
		return nil, fmt.Errorf("redis load hints: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	var h Hints
	if err := res.Scan(&h); err != nil {
		return nil, fmt.Errorf("scan hints: %w", err)
	}
	return &h, nil
}

// SaveDiscount records the last resolved discount code and its origin.
func (s *RedisHintStore) SaveDiscount(ctx context.Context, sessionID, code, origin string) error {
	key := hintsKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "discount_code", code, "discount_origin", origin)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save discount: %w", err)
	}
	return nil
}

// SavePresented stores the last quote shown to the customer.
func (s *RedisHintStore) SavePresented(ctx context.Context, sessionID string, p *domain.PresentedState) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal presented state: %w", err)
	}
	if err := s.client.Set(ctx, presentedKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save presented state: %w", err)
	}
	return nil
}

// LoadPresented returns the last quote shown, or nil if none is stored.
func (s *RedisHintStore) LoadPresented(ctx context.Context, sessionID string) (*domain.PresentedState, error) {
	data, err := s.client.Get(ctx, presentedKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis load presented state: %w", err)
	}

	var p domain.PresentedState
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal presented state: %w", err)
	}
	return &p, nil
}
