package middleware

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/class-booking/internal/config"
)

// tokenBucket refills continuously at refill/interval_ms tokens per ms and
// spends one token per call.
// ARGV: now_ms, capacity, refill, interval_ms, ttl_s.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local rate = tonumber(ARGV[3]) / tonumber(ARGV[4])

local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(st[1]) or cap
local ts = tonumber(st[2]) or now
if now > ts then
    tokens = math.min(cap, tokens + (now - ts) * rate)
end

local allowed, wait = 0, 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[5]))
return {allowed, math.floor(tokens), wait}
`)

// NewTokenBucket limits requests per key with a Redis token bucket. With
// no client or when disabled it passes everything through. Redis errors
// fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            res, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second)).Int64Slice()
            if err != nil || len(res) != 3 {
                log.Warn("ratelimit: script failed, allowing request", zap.String("key", key), zap.Error(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if res[0] == 1 {
                return next(c)
            }

            secs := (res[2] + 999) / 1000
            h.Set("Retry-After", strconv.FormatInt(secs, 10))
            if cfg.Debug {
                log.Info("ratelimit: blocked", zap.String("key", key), zap.Int64("retry_ms", res[2]))
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate limit exceeded",
                "code":        "too_many_requests",
                "retry_after": secs,
            })
        }
    }
}

// rateKey joins the parts named by the strategy, e.g. "user_route" keys on
// caller and route. Unknown strategies use ip, user and route together.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    strategy := strings.ToLower(cfg.KeyStrategy)
    names := strings.Split(strategy, "_")
    for _, n := range names {
        if n != "ip" && n != "user" && n != "route" {
            names = []string{"ip", "user", "route"}
            break
        }
    }
    parts := []string{cfg.Prefix}
    for _, n := range names {
        switch n {
        case "ip":
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            parts = append(parts, "ip", ip)
        case "user":
            parts = append(parts, "user", currentUserID(c))
        case "route":
            parts = append(parts, "route", c.Request().Method+" "+c.Path())
        }
    }
    return strings.Join(parts, ":")
}

func currentUserID(c echo.Context) string {
    if uid, ok := UserID(c); ok {
        return strconv.FormatUint(uid, 10)
    }
    return "anon"
}
