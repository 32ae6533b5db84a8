package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/clock"
	"github.com/iliyamo/class-booking/internal/config"
	"github.com/iliyamo/class-booking/internal/database"
	"github.com/iliyamo/class-booking/internal/handler"
	"github.com/iliyamo/class-booking/internal/logger"
	"github.com/iliyamo/class-booking/internal/middleware"
	"github.com/iliyamo/class-booking/internal/payment"
	"github.com/iliyamo/class-booking/internal/queue"
	"github.com/iliyamo/class-booking/internal/repository"
	"github.com/iliyamo/class-booking/internal/repository/memory"
	"github.com/iliyamo/class-booking/internal/router"
	"github.com/iliyamo/class-booking/internal/service"
	"github.com/iliyamo/class-booking/internal/telemetry"
	"github.com/iliyamo/class-booking/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()

	lg, err := logger.Init(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelService,
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    !cfg.IsProd(),
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	clk, err := clock.NewZoned(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	deps, db, err := openStore(ctx, cfg, clk, lg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, lg.Named("publisher"))
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Close(cctx); err != nil {
			lg.Warn("publisher close", zap.Error(err))
		}
	}()
	deps.Events = publisher
	deps.Log = lg.Named("booking")

	consumer := queue.NewConsumer(cfg.RabbitURL, "logs", lg.Named("consumer"))
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("booking consumer stopped", zap.Error(err))
		}
	}()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		lg.Warn("redis unavailable: rate limiting, caching and sweep leases disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	reservations := service.NewReservationService(deps, service.WithHoldTTL(cfg.HoldDuration))
	queries := service.NewReservationQueryService(deps.Sessions, deps.Reservations, clk)
	reaper := service.NewHoldExpiryReaper(deps, cfg.ReaperBatchSize)
	completion := service.NewCompletionSweep(deps, cfg.ReaperBatchSize)

	workers := []*worker.Worker{
		worker.NewExpiryWorker(reaper, cfg.ReaperInterval, rdb, clk),
		worker.NewCompletionWorker(completion, cfg.CompletionInterval, rdb, clk),
	}
	for _, w := range workers {
		if err := w.Start(ctx); err != nil {
			return err
		}
	}
	defer func() {
		for _, w := range workers {
			w.Stop()
		}
	}()

	e := newServer(cfg, lg, rdb, db, reservations, queries, verifier, clk.Location())

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

func newServer(cfg config.Config, lg *zap.Logger, rdb *redis.Client, db *sql.DB,
	reservations *service.ReservationService, queries *service.ReservationQueryService,
	verifier service.PaymentVerifier, loc *time.Location) *echo.Echo {

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID(), middleware.RequestLogger(lg.Named("http")))

	cacheCfg := config.LoadCacheConfig()
	onChange := func(ctx context.Context, sessionID uint64) {
		middleware.InvalidatePath(ctx, rdb, cacheCfg, fmt.Sprintf("/v1/sessions/%d/availability", sessionID), lg)
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg.Named("ratelimit"))
	cache := middleware.NewRedisCache(cacheCfg, rdb, lg.Named("cache"))

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, handler.Health(pinger))
	router.RegisterCustomer(e,
		handler.NewReservationHandler(reservations, queries, loc, onChange),
		&handler.PaymentHandler{Reservations: reservations, Verifier: verifier, OnChange: onChange, Log: lg.Named("payment")},
		cfg.JWTSecret, limiter, cache)
	router.RegisterAdmin(e,
		&handler.AdminHandler{Reservations: reservations, Queries: queries, Location: loc, OnChange: onChange},
		cfg.JWTSecret)
	return e
}

// openStore returns service dependencies backed by MySQL or memory. db is
// nil for the memory store.
func openStore(ctx context.Context, cfg config.Config, clk clock.Clock, lg *zap.Logger) (service.Deps, *sql.DB, error) {
	if cfg.Store == config.StoreMemory {
		st := memory.New(cfg.LockWait)
		seedDemo(st, clk.Now())
		lg.Warn("using in-memory store; data is lost on exit")
		if !cfg.IsProd() {
			logDemoTokens(cfg.JWTSecret, lg)
		}
		return service.Deps{
			Tx:           st,
			Sessions:     st.Sessions(),
			Reservations: st.Reservations(),
			Users:        st.Users(),
			Coupons:      st.CouponLedger(),
			Points:       st.PointLedger(),
			Clock:        clk,
		}, nil, nil
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		LockWait: cfg.LockWait,
	})
	if err != nil {
		return service.Deps{}, nil, fmt.Errorf("mysql: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return service.Deps{}, nil, err
	}
	return service.Deps{
		Tx:           repository.NewTxManager(db),
		Sessions:     repository.NewSessionRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Users:        repository.NewUserRepo(db),
		Coupons:      repository.NewCouponRepo(db),
		Points:       repository.NewPointRepo(db),
		Clock:        clk,
	}, db, nil
}

// newVerifier picks the payment verifier. Without a Stripe key the
// client-reported amount is trusted, which is refused in production.
func newVerifier(cfg config.Config) (service.PaymentVerifier, error) {
	if cfg.StripeSecretKey != "" {
		return payment.NewStripeVerifier(cfg.StripeSecretKey)
	}
	if cfg.IsProd() {
		return nil, errors.New("STRIPE_SECRET_KEY is required in production")
	}
	return nil, nil
}
