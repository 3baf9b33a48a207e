package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taleemhub/monitoring-service/internal/cache"
)

const idempotencyTTL = 24 * time.Hour

// idempotencyGuard deduplicates logical submission attempts on a
// client-generated token. Redis SETNX is the authority when available; an
// in-process map covers single-instance deployments running without Redis.
type idempotencyGuard struct {
	helper *cache.CacheHelper

	mu   sync.Mutex
	seen map[string]time.Time
}

func newIdempotencyGuard(helper *cache.CacheHelper) *idempotencyGuard {
	return &idempotencyGuard{
		helper: helper,
		seen:   make(map[string]time.Time),
	}
}

// Acquire claims the token for this attempt. It returns ErrDuplicateRequest
// when the token was already claimed within the TTL.
func (g *idempotencyGuard) Acquire(ctx context.Context, userID, token string) error {
	if token == "" {
		return nil
	}

	key := fmt.Sprintf("idem:%s:%s", userID, token)

	ok, err := g.helper.SetNX(ctx, key, "1", idempotencyTTL)
	if err == nil {
		if !ok {
			return ErrDuplicateRequest
		}
		return nil
	}
	if !errors.Is(err, cache.ErrCacheNotAvailable) {
		return fmt.Errorf("idempotency check failed: %w", err)
	}

	// Redis unavailable: fall back to the process-local map.
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for k, expires := range g.seen {
		if now.After(expires) {
			delete(g.seen, k)
		}
	}

	if _, dup := g.seen[key]; dup {
		return ErrDuplicateRequest
	}
	g.seen[key] = now.Add(idempotencyTTL)

	return nil
}

// Release frees the token after a failed attempt so the client can retry
// with the same key.
func (g *idempotencyGuard) Release(ctx context.Context, userID, token string) {
	if token == "" {
		return
	}

	key := fmt.Sprintf("idem:%s:%s", userID, token)

	_ = g.helper.Delete(ctx, key)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
}
