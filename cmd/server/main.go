package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/agencyledger/internal/adapter/http"
	"github.com/iho/agencyledger/internal/adapter/http/handler"
	"github.com/iho/agencyledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/agencyledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/agencyledger/internal/adapter/repository/redis"
	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/infrastructure/auth"
	"github.com/iho/agencyledger/internal/infrastructure/config"
	"github.com/iho/agencyledger/internal/infrastructure/eventpublisher"
	"github.com/iho/agencyledger/internal/infrastructure/logger"
	"github.com/iho/agencyledger/internal/infrastructure/metrics"
	"github.com/iho/agencyledger/internal/infrastructure/postgres"
	"github.com/iho/agencyledger/internal/infrastructure/redis"
	"github.com/iho/agencyledger/internal/usecase"
)

const limiterIdleTimeout = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = logg

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg zerolog.Logger) error {
	policy, err := domain.ParseOutstandingPolicy(cfg.OutstandingPolicy)
	if err != nil {
		return err
	}

	verifier, err := newTokenVerifier(cfg)
	if err != nil {
		return err
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		ConnectTimeout:  cfg.DatabaseTimeout,
		MaxConnLifetime: cfg.DatabaseMaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logg.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	logg.Info().Msg("connected to redis")

	caps, err := postgresRepo.ProbeCapabilities(ctx, pool)
	if err != nil {
		return err
	}
	logg.Info().Bool("custom_charges", caps.CustomCharges).Msg("schema capabilities detected")

	m := metrics.New()
	app := wire(cfg, pool, redisClient, caps, policy, m, logg)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithHits(m.RateLimitHits)
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ReconciliationHandler: handler.NewReconciliationHandler(app.reconciliation),
		PaymentHandler:        handler.NewPaymentHandler(app.payments, logg),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		Idempotency:           middleware.NewIdempotencyMiddleware(redisRepo.NewIdempotencyStore(redisClient), cfg.IdempotencyTTL, m.IdempotentHits, logg),
		RateLimiter:           limiter,
		TokenVerifier:         verifier,
		Metrics:               m,
		Logger:                logg,
	})

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: app.outbox,
		Publisher:  newEventSink(cfg, redisClient, logg),
		Logger:     logg,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
		Published:  m.OutboxPublished,
		Failed:     m.OutboxErrors,
	})

	workers, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go func() {
		if err := publisher.Start(workers); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error().Err(err).Msg("event publisher stopped")
		}
	}()
	go cleanupLimiters(workers, limiter, time.Minute, logg)

	server := newHTTPServer(cfg, router)
	return serve(ctx, server, cfg.HTTPShutdownTimeout, logg)
}

type application struct {
	reconciliation *usecase.ReconciliationUseCase
	payments       *usecase.PaymentUseCase
	outbox         usecase.OutboxRepository
}

func wire(
	cfg *config.Config,
	pool *pgxpool.Pool,
	redisClient *goredis.Client,
	caps domain.Capabilities,
	policy domain.OutstandingPolicy,
	recorder usecase.Recorder,
	logg zerolog.Logger,
) application {
	entities := postgresRepo.NewEntityRepository(pool)
	currencies := redisRepo.NewCurrencyCache(redisClient, postgresRepo.NewCurrencyRepository(pool), cfg.CurrencyCacheTTL, logg)
	residences := postgresRepo.NewResidenceRepository(pool, caps)
	outbox := postgresRepo.NewOutboxRepository(pool)

	registry := postgresRepo.NewSourceRegistry(pool, caps)
	aggregator := usecase.NewAggregator(
		registry,
		chargePolicy(cfg),
		cfg.AggregationTimeout,
		recorder,
		logg,
	)

	return application{
		reconciliation: usecase.NewReconciliationUseCase(aggregator, entities, currencies, residences, policy, recorder, logg),
		payments: usecase.NewPaymentUseCase(
			postgresRepo.NewTxManager(pool),
			postgresRepo.NewRetrierWithConfig(postgresRepo.RetryConfig{
				MaxRetries:     cfg.PaymentMaxRetries,
				MaxElapsedTime: cfg.PaymentRetryMaxElapsed,
			}, logg),
			aggregator,
			usecase.PaymentStores{
				Payments:   postgresRepo.NewPaymentRepository(),
				Entities:   entities,
				Currencies: currencies,
				Residences: residences,
				Outbox:     outbox,
				Audit:      postgresRepo.NewAuditRepository(),
			},
			postgresRepo.NewULIDGenerator(),
			recorder,
			logg,
		).WithConcurrencyLimit(paymentConcurrency(cfg, registry.MaxFanOut())),
		outbox: outbox,
	}
}

func chargePolicy(cfg *config.Config) domain.ChargePolicy {
	return domain.NewChargePolicy(cfg.TawjeehDefaultAmount, cfg.InsuranceDefaultAmount)
}

// paymentConcurrency leaves every open payment transaction room for its recompute fan-out.
func paymentConcurrency(cfg *config.Config, fanOut int) int {
	if cfg.PaymentConcurrency > 0 {
		return cfg.PaymentConcurrency
	}
	return usecase.PaymentConcurrency(cfg.DatabaseMaxConns, fanOut)
}

func newEventSink(cfg *config.Config, redisClient *goredis.Client, logg zerolog.Logger) eventpublisher.Publisher {
	if cfg.OutboxStream == "" {
		logg.Warn().Msg("OUTBOX_STREAM is empty, outbox events are only logged")
		return eventpublisher.NewLogPublisher(logg.With().Str("component", "outbox").Logger())
	}
	return eventpublisher.NewStreamPublisher(redisClient, cfg.OutboxStream, cfg.OutboxStreamMaxLen)
}

// newTokenVerifier returns nil when authentication is disabled.
func newTokenVerifier(cfg *config.Config) (middleware.TokenVerifier, error) {
	if !cfg.AuthEnabled {
		return nil, nil
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("AUTH_ENABLED requires JWT_SECRET")
	}
	return auth.NewJWTManager(cfg.JWTSecret), nil
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logg zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logg.Info().Msg("server stopped")
	return nil
}

func cleanupLimiters(ctx context.Context, limiter *middleware.RateLimiter, every time.Duration, logg zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.CleanupLimiters(limiterIdleTimeout); n > 0 {
				logg.Debug().Int("removed", n).Msg("idle rate limiters removed")
			}
		}
	}
}
