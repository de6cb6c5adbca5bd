package redis

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS VIEW CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ViewCache caches assembled progress views keyed by learner. Serving layers
// consult it before hitting the gateway; the plan lifecycle event handler
// invalidates entries whenever the underlying state changes shape
// (implements eventhandler.ViewInvalidator).
type ViewCache struct {
	client *Client
	ttl    time.Duration
}

// NewViewCache creates a ViewCache. ttl <= 0 uses TTLProgressView.
func NewViewCache(client *Client, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = TTLProgressView
	}
	return &ViewCache{client: client, ttl: ttl}
}

func (v *ViewCache) key(learnerID string) string {
	return PrefixProgressView + learnerID
}

// Get loads a cached view into dest. Returns ErrCacheMiss when absent.
func (v *ViewCache) Get(ctx context.Context, learnerID string, dest any) error {
	return v.client.GetJSON(ctx, v.key(learnerID), dest)
}

// Put stores a view for the cache TTL.
func (v *ViewCache) Put(ctx context.Context, learnerID string, view any) error {
	return v.client.SetJSON(ctx, v.key(learnerID), view, v.ttl)
}

// Invalidate drops the learner's cached view.
func (v *ViewCache) Invalidate(ctx context.Context, learnerID string) error {
	return v.client.Delete(ctx, v.key(learnerID))
}
