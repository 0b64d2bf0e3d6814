// Package lock provides the per-key in-flight guards that serialize
// checkout attempts and free-gift syncs. A second trigger for a key that
// is already held is rejected, never queued.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when the key is already held.
var ErrHeld = errors.New("lock is held")

// Release frees a held key. It is safe to call more than once.
type Release func()

// Guard hands out exclusive, non-blocking holds on keys.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (Release, error)
}

// Local is an in-process Guard backed by a mutex-protected set.
type Local struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewLocal creates an in-process guard.
func NewLocal() *Local {
	return &Local{active: make(map[string]struct{})}
}

// TryAcquire checks and sets key atomically.
func (l *Local) TryAcquire(_ context.Context, key string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.active[key]; held {
		return nil, ErrHeld
	}
	l.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, key)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held.
func (l *Local) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.active[key]
	return held
}

// releaseScript deletes the key only if it still carries our token, so an
// expired hold never frees a newer holder's key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Guard shared by every replica, backed by SET NX with a TTL.
// The TTL bounds how long a crashed holder can block a key.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed guard. Keys are stored as prefix+key.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// TryAcquire sets the key if absent.
func (r *Redis) TryAcquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be canceled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err()
		})
	}, nil
}
