package config

import (
    "context"
    "crypto/tls"
    "fmt"
    "net"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance shared by the rate limiter, the
// availability cache and the sweep leases.
type RedisConfig struct {
    Addr        string
    Password    string
    DB          int
    TLS         bool
    InsecureTLS bool
}

// LoadRedisConfig reads REDIS_*. REDIS_HOST and REDIS_PORT win over
// REDIS_ADDR when both are set.
func LoadRedisConfig() RedisConfig {
    rc := RedisConfig{
        Addr:        envStr("REDIS_ADDR", "localhost:6379"),
        Password:    envStr("REDIS_PASSWORD", ""),
        DB:          envInt("REDIS_DB", 0),
        TLS:         envBool("REDIS_TLS", false),
        InsecureTLS: envBool("REDIS_TLS_INSECURE", false),
    }
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        rc.Addr = net.JoinHostPort(host, port)
    }
    return rc
}

// NewRedisClient connects and pings. On failure the client is closed and
// the error returned; callers run without Redis in that case.
func NewRedisClient(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
    opts := &redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB}
    if rc.TLS {
        host, _, _ := net.SplitHostPort(rc.Addr)
        opts.TLSConfig = &tls.Config{ServerName: host, InsecureSkipVerify: rc.InsecureTLS, MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(opts)

    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
    }
    return client, nil
}
