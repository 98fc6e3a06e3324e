// Package cache keeps slot availability in Redis. The store stays the
// source of truth: entries are dropped whenever a reservation change on the
// slot commits and expire after a TTL otherwise.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/model"
)

// Availability is a read-through cache of model.SlotAvailability keyed by
// slot id. A nil *Availability, or one without a client, misses on every
// read and ignores writes.
type Availability struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewAvailability returns a cache over rdb, or nil when caching is disabled
// or Redis is unavailable.
func NewAvailability(cfg config.CacheConfig, rdb *redis.Client) *Availability {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cache"
	}
	return &Availability{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (a *Availability) key(slotID uint64) string {
	return fmt.Sprintf("%s:slot:%d:availability", a.prefix, slotID)
}

// Get returns the cached availability for slotID. Redis errors count as a
// miss.
func (a *Availability) Get(ctx context.Context, slotID uint64) (model.SlotAvailability, bool) {
	if a == nil || a.rdb == nil {
		return model.SlotAvailability{}, false
	}
	bs, err := a.rdb.Get(ctx, a.key(slotID)).Bytes()
	if err != nil {
		return model.SlotAvailability{}, false
	}
	var v model.SlotAvailability
	if err := json.Unmarshal(bs, &v); err != nil {
		return model.SlotAvailability{}, false
	}
	return v, true
}

// Set stores v under its slot id.
func (a *Availability) Set(ctx context.Context, v model.SlotAvailability) error {
	if a == nil || a.rdb == nil {
		return nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return a.rdb.Set(ctx, a.key(v.SlotID), bs, a.ttl).Err()
}

// Invalidate drops the entry for slotID. A missing key is not an error.
func (a *Availability) Invalidate(ctx context.Context, slotID uint64) error {
	if a == nil || a.rdb == nil {
		return nil
	}
	err := a.rdb.Del(ctx, a.key(slotID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
