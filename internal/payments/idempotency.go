package payments

import (
	"context"
	"fmt"
	"time"

	pkgredis "github.com/bazaarlabs/bazaar-backend/pkg/redis"
)

const dedupeTTL = 72 * time.Hour

// IdempotencyGuard dedupes gateway and courier events by id. The key is
// claimed before processing and released on failure so a redelivery can
// retry; on success it stays claimed until the TTL expires.
type IdempotencyGuard struct {
	store pkgredis.IdempotencyStore
	scope string
}

// NewIdempotencyGuard builds a guard scoped to one event source, e.g.
// "webhook:payment".
func NewIdempotencyGuard(store pkgredis.IdempotencyStore, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if scope == "" {
		return nil, fmt.Errorf("idempotency scope required")
	}
	return &IdempotencyGuard{store: store, scope: scope}, nil
}

// Claim marks the event id as in-flight. Returns false when the id was
// already claimed, meaning the event is a duplicate.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.SetNX(ctx, key, "1", dedupeTTL)
}

// Release frees a claimed id after a processing failure so the source's
// redelivery can be handled.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
