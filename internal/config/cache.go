package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware used on
// public event reads.  When Enabled is false or no Redis client is
// configured, caching is disabled.  TTL stays short because cached bodies
// include the live seat count.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	Methods      []string      `env:"CACHE_METHODS" envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"CACHE_TTL" envDefault:"5s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Caches reports whether responses to the given HTTP method are cached.
func (c CacheConfig) Caches(method string) bool {
	for _, m := range c.Methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}
