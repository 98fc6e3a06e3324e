package config

import "time"

// CacheConfig defines settings for the slot availability cache. When
// Enabled is false or no Redis client is configured, availability is always
// read from the store. Every successful reservation change on a slot drops
// its cached entry, so TTL only bounds how long an entry lives without
// traffic.
type CacheConfig struct {
	Enabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	Prefix  string        `env:"CACHE_PREFIX" envDefault:"cache"`
}
