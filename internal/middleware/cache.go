package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/class-booking/internal/config"
)

// cachedResponse is what the cache stores per key.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// bodyRecorder tees the response into buf until limit bytes; overflow
// marks the response as too large to cache.
type bodyRecorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (w *bodyRecorder) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
    if !w.overflow {
        if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
            w.overflow = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cacheKeyFrom keys on the concrete request path, so /sessions/1 and
// /sessions/2 never share an entry. The path stays readable in the key
// for PathKeyPattern; the strategy-dependent parts are hashed.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    path := r.URL.Path
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{path}
    case "method_route":
        parts = []string{r.Method, path}
    case "method_route_query":
        parts = []string{r.Method, path, r.URL.RawQuery}
    default: // route_query
        parts = []string{path, r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, "\x00")))
    return fmt.Sprintf("%s:%s:%x", cfg.Prefix, path, sum[:8])
}

// PathKeyPattern matches every cache entry stored for path.
func PathKeyPattern(cfg config.CacheConfig, path string) string {
    return fmt.Sprintf("%s:%s:*", cfg.Prefix, path)
}

// InvalidatePath drops cached responses for path. Errors are logged only.
func InvalidatePath(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig, path string, log *zap.Logger) {
    if rdb == nil || !cfg.Enabled {
        return
    }
    if log == nil {
        log = zap.NewNop()
    }
    iter := rdb.Scan(ctx, 0, PathKeyPattern(cfg, path), 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        log.Warn("cache: scan failed", zap.String("path", path), zap.Error(err))
        return
    }
    if len(keys) > 0 {
        if err := rdb.Del(ctx, keys...).Err(); err != nil {
            log.Warn("cache: delete failed", zap.String("path", path), zap.Error(err))
        }
    }
}

// replay writes a stored response. Per-request headers are not replayed.
func replay(c echo.Context, cr cachedResponse) error {
    h := c.Response().Header()
    for k, vals := range cr.Header {
        if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, RequestIDHeader) {
            continue
        }
        for _, v := range vals {
            h.Add(k, v)
        }
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(cr.Status)
    _, err := c.Response().Write(cr.Body)
    return err
}

// NewRedisCache serves cached 200 responses for the configured methods on
// the routes it wraps. Redis failures degrade to an uncached request.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            raw, err := rdb.Get(ctx, key).Bytes()
            switch {
            case err == nil:
                var cr cachedResponse
                if json.Unmarshal(raw, &cr) == nil {
                    return replay(c, cr)
                }
                log.Warn("cache: corrupt entry", zap.String("key", key))
            case !errors.Is(err, redis.Nil):
                log.Warn("cache: get failed", zap.String("key", key), zap.Error(err))
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := json.Marshal(cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()})
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err(); err != nil {
                log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}
