package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", " SQLite ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("expected normalized driver sqlite, got %q", cfg.DB.Driver)
	}
	if cfg.Booking.AutoCompleteAfter != 2*time.Hour {
		t.Fatalf("expected auto-complete after 2h, got %s", cfg.Booking.AutoCompleteAfter)
	}
	if cfg.Booking.LinkTTL != 72*time.Hour {
		t.Fatalf("expected link ttl 72h, got %s", cfg.Booking.LinkTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Broker.KafkaBrokers) != 2 || cfg.Broker.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Broker.KafkaBrokers)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidateJoinsProblems(t *testing.T) {
	cfg := Config{
		Port: "8080",
		DB:   DatabaseConfig{Driver: "postgres"},
		Broker: BrokerConfig{
			Kind: "nats",
		},
		Booking: BookingConfig{SweepInterval: time.Minute, ConflictRetries: -1},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"JWT_SECRET", "DB_DRIVER", "EVENT_BROKER", "CONFLICT_RETRIES"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestRateLimitNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   RateLimitConfig
		want RateLimitConfig
	}{
		{
			name: "burst overrides capacity",
			in:   RateLimitConfig{Capacity: 10, Burst: 3, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute},
			want: RateLimitConfig{Capacity: 3, Burst: 3, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute},
		},
		{
			name: "refill every and ttl floor",
			in:   RateLimitConfig{Capacity: 0, RefillTokens: 5, RefillEvery: time.Minute, TTL: time.Second},
			want: RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, RefillEvery: time.Minute, TTL: 5 * time.Minute},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in
			got.normalize()
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestRedisAddress(t *testing.T) {
	if got := (RedisConfig{Host: "cache", Port: "6380", Addr: "ignored:1"}).Address(); got != "cache:6380" {
		t.Fatalf("expected host:port, got %q", got)
	}
	if got := (RedisConfig{Addr: "r:6379"}).Address(); got != "r:6379" {
		t.Fatalf("expected addr, got %q", got)
	}
	if got := (RedisConfig{}).Address(); got != "localhost:6379" {
		t.Fatalf("expected default addr, got %q", got)
	}
}
