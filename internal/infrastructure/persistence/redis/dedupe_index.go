package redis

import (
	"context"
	"time"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT DEDUPE INDEX
// ══════════════════════════════════════════════════════════════════════════════

// DedupeIndex implements gateway.DedupeIndex over Redis. Acknowledged event
// ids are stored with a TTL; a hit lets the gateway acknowledge a replay
// without taking a lane trip. Misses and errors are harmless: the ledger's
// applied-event set remains the authority.
type DedupeIndex struct {
	client *Client
	ttl    time.Duration
}

// NewDedupeIndex creates a DedupeIndex. ttl <= 0 uses TTLEventDedupe.
func NewDedupeIndex(client *Client, ttl time.Duration) *DedupeIndex {
	if ttl <= 0 {
		ttl = TTLEventDedupe
	}
	return &DedupeIndex{client: client, ttl: ttl}
}

func (d *DedupeIndex) key(id shared.EventID) string {
	return PrefixEvent + id.String()
}

// Seen reports whether the event id was recently acknowledged.
func (d *DedupeIndex) Seen(ctx context.Context, id shared.EventID) (bool, error) {
	n, err := d.client.rdb.Exists(ctx, d.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records an acknowledged event id for the index TTL.
func (d *DedupeIndex) Mark(ctx context.Context, id shared.EventID) error {
	return d.client.rdb.Set(ctx, d.key(id), 1, d.ttl).Err()
}
