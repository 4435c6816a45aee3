package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// IdempotencyCache stores committed turn responses keyed by principal and
// client-supplied idempotency key, so a retried request replays the original
// result instead of committing a second turn.
//
// Entries expire after the configured TTL. Only successful turns are cached;
// a failed turn may be retried with the same key.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	ttl     time.Duration
}

type idempotencyEntry struct {
	resp     *api.TurnResponse
	storedAt time.Time
}

// DefaultIdempotencyTTL is how long a replayed response stays available.
const DefaultIdempotencyTTL = 1 * time.Hour

// NewIdempotencyCache creates a cache. ttl <= 0 uses DefaultIdempotencyTTL.
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyCache{
		entries: make(map[string]idempotencyEntry),
		ttl:     ttl,
	}
}

// get returns the cached response for the key, expiring stale entries.
func (c *IdempotencyCache) get(key string) (*api.TurnResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.resp, true
}

// put stores a committed response, opportunistically evicting expired entries.
func (c *IdempotencyCache) put(key string, resp *api.TurnResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if time.Since(e.storedAt) > c.ttl {
			delete(c.entries, k)
		}
	}

	c.entries[key] = idempotencyEntry{resp: resp, storedAt: time.Now()}
}

// Idempotency returns middleware that replays committed turns for repeated
// idempotency keys. Requests without a key pass through untouched. Keys are
// scoped per principal; two principals sharing a key never see each other's
// turns.
func Idempotency(cache *IdempotencyCache) Middleware {
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
			key := IdempotencyKeyFromContext(ctx)
			if key == "" {
				return next.ProcessTurn(ctx, principal, req)
			}

			cacheKey := principal + "\x00" + key
			if resp, ok := cache.get(cacheKey); ok {
				slog.Debug("replaying idempotent turn",
					"principal", principal,
					"conversation", resp.ConversationID,
				)
				return resp, nil
			}

			resp, err := next.ProcessTurn(ctx, principal, req)
			if err == nil {
				cache.put(cacheKey, resp)
			}
			return resp, err
		})
	}
}
