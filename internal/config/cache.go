package config

import "time"

// CacheConfig controls the Redis response cache used for session
// availability. Entries are dropped whenever a booking changes the
// session, so TTL only bounds staleness from writers outside this process.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // upper-cased HTTP methods eligible for caching
    TTL          time.Duration
    KeyStrategy  string // route, method_route, route_query or method_route_query
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_*.
func LoadCacheConfig() CacheConfig {
    cc := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      envSet("CACHE_METHODS", "GET"),
        TTL:          envDur("CACHE_TTL", 10*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 64<<10),
    }
    if cc.TTL <= 0 {
        cc.TTL = time.Second
    }
    return cc
}
