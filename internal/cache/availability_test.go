package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/model"
)

func TestNewAvailabilityDisabled(t *testing.T) {
	if a := NewAvailability(config.CacheConfig{Enabled: false}, redis.NewClient(&redis.Options{})); a != nil {
		t.Fatal("expected nil cache when disabled")
	}
	if a := NewAvailability(config.CacheConfig{Enabled: true}, nil); a != nil {
		t.Fatal("expected nil cache without a client")
	}
}

func TestNilAvailabilityIsANoop(t *testing.T) {
	var a *Availability
	ctx := context.Background()
	if _, ok := a.Get(ctx, 1); ok {
		t.Fatal("expected miss")
	}
	if err := a.Set(ctx, model.SlotAvailability{SlotID: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := a.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
}

func TestKeyAndDefaults(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	a := NewAvailability(config.CacheConfig{Enabled: true}, rdb)
	if a.ttl != 30*time.Second || a.prefix != "cache" {
		t.Fatalf("unexpected defaults ttl=%s prefix=%q", a.ttl, a.prefix)
	}
	if got := a.key(17); got != "cache:slot:17:availability" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestUnreachableRedisMisses(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	a := NewAvailability(config.CacheConfig{Enabled: true, TTL: time.Second, Prefix: "t"}, rdb)

	if _, ok := a.Get(context.Background(), 3); ok {
		t.Fatal("expected an unreachable server to read as a miss")
	}
}
