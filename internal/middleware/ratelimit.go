package middleware

import (
    "log/slog"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/video-access/internal/config"
)

// bucketScript keeps {n, at} per key: n tokens left, at the start of the
// current refill interval.  now and interval are milliseconds, ttl is
// seconds.  Returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
    local now, cap, refill, step, ttl =
        tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
    local n = tonumber(redis.call('HGET', KEYS[1], 'n')) or cap
    local at = tonumber(redis.call('HGET', KEYS[1], 'at')) or now

    local k = math.floor((now - at) / step)
    if k > 0 then
        n = math.min(cap, n + k * refill)
        at = at + k * step
    end

    local ok, wait = 0, 0
    if n >= 1 then
        ok, n = 1, n - 1
    else
        wait = math.max(0, at + step - now)
    end

    redis.call('HSET', KEYS[1], 'n', n, 'at', at)
    redis.call('EXPIRE', KEYS[1], ttl)
    return {ok, n, wait}
`)

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewTokenBucket limits requests per key with a Redis-backed token bucket.
// Without Redis, or when disabled, it lets everything through; a Redis
// error lets the request through too.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    log = log.With("component", "ratelimit", "prefix", cfg.Prefix)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            args := []any{
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL / time.Second),
            }
            vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
            if err != nil || len(vals) != 3 {
                log.Warn("limiter unavailable, allowing request", "key", key, "error", err)
                return next(c)
            }
            allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }

            if !allowed {
                secs := int(math.Ceil(float64(retryMs) / 1000))
                h.Set("Retry-After", strconv.Itoa(secs))
                log.Info("request throttled", "key", key, "retry_after", secs)
                body := errorBody("too_many_requests", "rate limit exceeded")
                body["retry_after"] = secs
                return c.JSON(http.StatusTooManyRequests, body)
            }
            return next(c)
        }
    }
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := userID(c)
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
