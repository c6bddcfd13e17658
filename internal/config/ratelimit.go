package config

import "time"

// RateLimitConfig configures one token bucket.  Capacity tokens are
// available up front and RefillTokens are added every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// RateLimitTiers holds the bucket used by ordinary routes plus the two
// stricter tiers of the login endpoints.
type RateLimitTiers struct {
    Default       RateLimitConfig
    RequestToken  RateLimitConfig
    ValidateToken RateLimitConfig
}

// LoadRateLimitConfig reads the default tier from RATE_LIMIT_*.  The
// default allows 100 requests a minute per ip, user and route.
func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 100),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 100),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Minute),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
        def.Capacity = b
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        def.RefillTokens = 1
        def.RefillInterval = every
    }
    return def.normalized()
}

// LoadRateLimitTiers builds the per-route tiers.  The login tiers are fixed
// windows: the whole bucket refills once per window, so at most Capacity
// requests pass per source in any window.
func LoadRateLimitTiers() RateLimitTiers {
    def := LoadRateLimitConfig()
    tier := func(prefix string, limit int, window time.Duration) RateLimitConfig {
        t := def
        t.Prefix = def.Prefix + ":" + prefix
        t.KeyStrategy = "ip_route"
        t.Capacity = limit
        t.RefillTokens = limit
        t.RefillInterval = window
        t.TTL = 2 * window
        return t.normalized()
    }
    return RateLimitTiers{
        Default:       def,
        RequestToken:  tier("request-token", envInt("RATE_LIMIT_REQUEST_TOKEN", 5), envDur("RATE_LIMIT_REQUEST_TOKEN_WINDOW", 5*time.Minute)),
        ValidateToken: tier("validate-token", envInt("RATE_LIMIT_VALIDATE_TOKEN", 10), envDur("RATE_LIMIT_VALIDATE_TOKEN_WINDOW", 5*time.Minute)),
    }
}

func (c RateLimitConfig) normalized() RateLimitConfig {
    c.Capacity = max(c.Capacity, 1)
    c.RefillTokens = max(c.RefillTokens, 1)
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    c.TTL = max(c.TTL, 5*c.RefillInterval)
    return c
}
