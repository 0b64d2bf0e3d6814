package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dinhdungweb/Helios-account/internal/checkout"
	"github.com/dinhdungweb/Helios-account/internal/config"
	"github.com/dinhdungweb/Helios-account/internal/draftorder"
	"github.com/dinhdungweb/Helios-account/internal/event"
	"github.com/dinhdungweb/Helios-account/internal/gift"
	handler "github.com/dinhdungweb/Helios-account/internal/handler/http"
	"github.com/dinhdungweb/Helios-account/internal/lock"
	"github.com/dinhdungweb/Helios-account/internal/pricing"
	"github.com/dinhdungweb/Helios-account/internal/session"
	"github.com/dinhdungweb/Helios-account/internal/storefront"
	"github.com/dinhdungweb/Helios-account/pkg/database"
	"github.com/dinhdungweb/Helios-account/pkg/health"
	"github.com/dinhdungweb/Helios-account/pkg/httpclient"
	pkgkafka "github.com/dinhdungweb/Helios-account/pkg/kafka"
	"github.com/dinhdungweb/Helios-account/pkg/middleware"
	"github.com/dinhdungweb/Helios-account/pkg/tracing"
)

const serviceName = "tier-pricing"

// App wires together all dependencies and runs the tier pricing service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tiers, err := cfg.TierTable()
	if err != nil {
		return nil, fmt.Errorf("tier table: %w", err)
	}
	policy, err := cfg.ScopePolicy()
	if err != nil {
		return nil, fmt.Errorf("scope policy: %w", err)
	}
	giftCfg, err := gift.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("gift config: %w", err)
	}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.Redis.Addr()),
		slog.Int("db", cfg.Redis.DB),
	)
	prometheus.MustRegister(database.NewPoolStatsCollector(rdb, serviceName))
	if cfg.SlowCommandThresholdMs > 0 {
		database.SetSlowCommandLogging(time.Duration(cfg.SlowCommandThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Kafka producer. The publisher stays a nil interface when
	// events are off so the event producer turns into a no-op.
	var (
		producer  *pkgkafka.Producer
		publisher pkgkafka.Publisher
	)
	if cfg.EventsEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("event publishing disabled")
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Storefront reads are retried; the circuit breaker guards both APIs.
	storefrontHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		cfg.CircuitBreaker("storefront"),
		logger,
	)
	orderHTTPCfg := httpclient.DefaultConfig()
	orderHTTPCfg.MaxRetries = 0
	orderHTTPCfg.Timeout = cfg.OrderTimeout()
	orderHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(orderHTTPCfg),
		cfg.CircuitBreaker("order"),
		logger,
	)
	logger.Info("circuit breakers initialized",
		slog.Uint64("max_requests", uint64(cfg.CBMaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cfg.CBMinRequests)),
	)

	// Build the dependency graph.
	store := storefront.NewClient(storefrontHTTP, cfg.StorefrontURL, cfg.CollectionMaxPages)
	catalog := storefront.NewCatalog(
		store,
		storefront.NewRedisMembershipCache(rdb, cfg.CollectionCacheTTL()),
		cfg.ProductFetchConcurrency,
		logger,
	)
	hints := session.NewRedisHintStore(rdb, cfg.SessionTTL())
	codes := cfg.CodeBook()

	var guard lock.Guard = lock.NewLocal()
	if cfg.GuardBackend == config.GuardRedis {
		guard = lock.NewRedis(rdb, "helios:guard:", cfg.GuardTTL())
	}

	sessionService := session.NewService(
		cfg.SessionSecret,
		session.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL()),
		tiers,
		policy,
		hints,
		logger,
	)
	pricingService := pricing.NewService(store, catalog, hints, codes, logger)
	builder := draftorder.NewBuilder(orderHTTP, draftorder.Config{
		Endpoint: cfg.OrderAPIURL,
		APIKey:   cfg.OrderAPIKey,
		Timeout:  cfg.OrderTimeout(),
	}, logger)
	checkoutService := checkout.NewService(store, catalog, builder, guard, hints, eventProducer, codes, logger)
	giftManager := gift.NewManager(giftCfg, store, catalog, guard, eventProducer, logger)

	logger.Info("tier pricing configured",
		slog.Int("tiers", len(tiers)),
		slog.Int("codes", len(codes)),
		slog.String("scope", string(policy.Kind)),
		slog.String("guard", cfg.GuardBackend),
		slog.Bool("gift_enabled", giftCfg.Enabled),
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", database.RedisChecker(rdb))
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment
	router := handler.NewRouter(handler.Services{
		Sessions: sessionService,
		Pricing:  pricingService,
		Checkout: checkoutService,
		Gifts:    giftManager,
	}, healthHandler, cors, handler.RateLimits{
		RPS:   cfg.RateLimitRPS,
		Burst: cfg.RateLimitBurst,
	}, logger)

	// Writes outlive the order timeout so a slow order API still gets a
	// structured error back to the storefront.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.OrderTimeout() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Drain in-flight checkouts; an order may still be in flight.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.OrderTimeout()+5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
