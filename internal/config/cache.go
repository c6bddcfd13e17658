package config

import (
    "net/http"
    "strings"
    "time"
)

// CacheConfig drives the Redis response cache that shared, caller
// independent endpoints (the category list) opt into.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // only these methods are replayed
    TTL          time.Duration
    KeyStrategy  string // route | route_query | method_route | method_route_query
    Prefix       string
    MaxBodyBytes int // larger responses are served but not stored
}

// LoadCacheConfig reads CACHE_*.  Categories change rarely, so a minute of
// staleness is the default.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      methodSet(envStr("CACHE_METHODS", http.MethodGet)),
        TTL:          envDur("CACHE_TTL", time.Minute),
        KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if cfg.TTL <= 0 {
        cfg.TTL = time.Minute
    }
    return cfg
}

// methodSet parses a comma separated method list into a lookup set.
func methodSet(list string) map[string]bool {
    set := make(map[string]bool)
    for _, m := range strings.Split(list, ",") {
        if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
            set[m] = true
        }
    }
    return set
}
