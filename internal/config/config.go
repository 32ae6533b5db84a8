package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "time"
)

// Store backends selectable with STORE.
const (
    StoreMySQL  = "mysql"
    StoreMemory = "memory"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
    Env      string // application environment (e.g. "dev", "prod")
    Port     string // HTTP port to listen on
    Timezone string // zone the booking clock reports in

    Store    string        // mysql or memory
    DBUser   string        // database username
    DBPass   string        // database password (optional)
    DBHost   string        // database host address
    DBPort   string        // database port number
    DBName   string        // database name
    LockWait time.Duration // innodb_lock_wait_timeout for the session row lock

    HoldDuration       time.Duration // how long a HOLD keeps its seat
    ReaperInterval     time.Duration // expiry worker period
    ReaperBatchSize    int           // holds expired per sweep at most
    CompletionInterval time.Duration // completion worker period

    JWTSecret       string // secret used to verify bearer tokens
    RabbitURL       string // broker for reservation events
    StripeSecretKey string // empty disables provider verification outside prod

    OTelEnabled  bool
    OTelEndpoint string
    OTelService  string
}

// Load reads configuration values from environment variables. Required
// variables are enforced by must(); the database group is only required
// for the mysql store.
func Load() Config {
    c := Config{
        Env:      must("APP_ENV"),
        Port:     must("APP_PORT"),
        Timezone: envStr("APP_TIMEZONE", "Asia/Seoul"),

        Store:    envStr("STORE", StoreMySQL),
        LockWait: time.Duration(envInt("LOCK_WAIT_TIMEOUT_SEC", 3)) * time.Second,

        HoldDuration:       envDur("HOLD_DURATION", 10*time.Minute),
        ReaperInterval:     envDur("REAPER_INTERVAL", time.Minute),
        ReaperBatchSize:    envInt("REAPER_BATCH_SIZE", 500),
        CompletionInterval: envDur("COMPLETION_INTERVAL", time.Minute),

        JWTSecret:       must("JWT_SECRET"),
        RabbitURL:       envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
        StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

        OTelEnabled:  envBool("OTEL_ENABLED", false),
        OTelEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
        OTelService:  envStr("OTEL_SERVICE_NAME", "class-booking"),
    }
    switch c.Store {
    case StoreMySQL:
        c.DBUser = must("DB_USER")
        c.DBPass = os.Getenv("DB_PASS") // empty allowed
        c.DBHost = must("DB_HOST")
        c.DBPort = must("DB_PORT")
        c.DBName = must("DB_NAME")
    case StoreMemory:
    default:
        log.Fatalf("invalid STORE %q (want mysql or memory)", c.Store)
    }
    if c.HoldDuration <= 0 {
        log.Fatalf("HOLD_DURATION must be positive")
    }
    if c.ReaperBatchSize < 1 {
        c.ReaperBatchSize = 1
    }
    return c
}

// IsProd reports whether the process runs in production.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
