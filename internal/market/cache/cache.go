// Package cache provides a read-through Redis cache for listing snapshots.
// The stores stay authoritative; the cache only shortens the read path for
// quote and lookup traffic and is overwritten on every committed mutation.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
)

const keyPrefix = "fracmarket:listing:"

// ListingCache caches listing snapshots in Redis. A nil *ListingCache is
// valid and caches nothing.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New builds a cache over the given client. Returns nil when the client is
// nil so callers can wire it unconditionally.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ListingCache {
	if client == nil {
		return nil
	}
	return &ListingCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached snapshot, or false on miss or any cache failure.
func (c *ListingCache) Get(ctx context.Context, listingID id.ListingID) (*models.Listing, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, keyPrefix+listingID.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "listing cache read failed", "error", err)
		}
		return nil, false
	}
	var listing models.Listing
	if err := json.Unmarshal(raw, &listing); err != nil {
		c.logger.WarnContext(ctx, "listing cache decode failed", "error", err)
		return nil, false
	}
	return &listing, true
}

// Set stores a snapshot with the configured TTL, replacing any stale entry
// after a mutation. Failures are logged and swallowed; the cache is never
// load-bearing.
func (c *ListingCache) Set(ctx context.Context, listing *models.Listing) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		c.logger.WarnContext(ctx, "listing cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+listing.ID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "listing cache write failed", "error", err)
	}
}