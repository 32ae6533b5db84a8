package config

import (
    "context"
    "net"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoadMemoryStoreDefaults(t *testing.T) {
    t.Setenv("APP_ENV", "dev")
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "secret")
    t.Setenv("STORE", "memory")

    c := Load()
    assert.Equal(t, StoreMemory, c.Store)
    assert.Equal(t, "Asia/Seoul", c.Timezone)
    assert.Equal(t, 3*time.Second, c.LockWait)
    assert.Equal(t, 10*time.Minute, c.HoldDuration)
    assert.Equal(t, time.Minute, c.ReaperInterval)
    assert.Equal(t, 500, c.ReaperBatchSize)
    assert.False(t, c.IsProd())
    assert.Empty(t, c.DBHost)
}

func TestLoadOverrides(t *testing.T) {
    t.Setenv("APP_ENV", "prod")
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "secret")
    t.Setenv("STORE", "mysql")
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_PORT", "3306")
    t.Setenv("DB_NAME", "booking")
    t.Setenv("LOCK_WAIT_TIMEOUT_SEC", "5")
    t.Setenv("HOLD_DURATION", "15m")
    t.Setenv("REAPER_BATCH_SIZE", "0")

    c := Load()
    assert.True(t, c.IsProd())
    assert.Equal(t, "db", c.DBHost)
    assert.Equal(t, 5*time.Second, c.LockWait)
    assert.Equal(t, 15*time.Minute, c.HoldDuration)
    assert.Equal(t, 1, c.ReaperBatchSize)
}

func TestRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    rl := LoadRateLimitConfig()
    assert.Equal(t, 1, rl.Capacity)
    assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestCacheConfigMethods(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    cc := LoadCacheConfig()
    assert.True(t, cc.Methods["GET"])
    assert.True(t, cc.Methods["HEAD"])
    assert.False(t, cc.Methods["POST"])
}

func TestRedisConfigAndClient(t *testing.T) {
    mr := miniredis.RunT(t)
    t.Setenv("REDIS_ADDR", "ignored:1")
    host, port, err := net.SplitHostPort(mr.Addr())
    require.NoError(t, err)
    t.Setenv("REDIS_HOST", host)
    t.Setenv("REDIS_PORT", port)

    rc := LoadRedisConfig()
    assert.Equal(t, mr.Addr(), rc.Addr)

    rdb, err := NewRedisClient(context.Background(), rc)
    require.NoError(t, err)
    defer rdb.Close()

    mr.Close()
    _, err = NewRedisClient(context.Background(), rc)
    assert.Error(t, err)
}
