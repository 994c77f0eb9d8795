package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/handlers"
	"github.com/quotedesk/checkout/internal/payments"
	"github.com/quotedesk/checkout/internal/platform/config"
	pfirestore "github.com/quotedesk/checkout/internal/platform/firestore"
	"github.com/quotedesk/checkout/internal/platform/observability"
	"github.com/quotedesk/checkout/internal/platform/secrets"
	"github.com/quotedesk/checkout/internal/pricing"
	"github.com/quotedesk/checkout/internal/repositories"
	firestoreRepo "github.com/quotedesk/checkout/internal/repositories/firestore"
	"github.com/quotedesk/checkout/internal/repositories/memory"
	redisRepo "github.com/quotedesk/checkout/internal/repositories/redis"
	"github.com/quotedesk/checkout/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	lookup, err := config.Lookup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}
	level, _ := lookup("LOG_LEVEL")

	baseLogger, err := observability.NewLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("quote-api")

	fetcher, err := newSecretFetcher(ctx, logger, lookup)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	resolver, catalogCheck, err := newResolver(cfg.Catalog, metrics, logger)
	if err != nil {
		logger.Fatal("failed to initialise catalog", zap.Error(err))
	}

	card := pricing.DefaultRateCard()
	if path := strings.TrimSpace(cfg.Pricing.RateCardFile); path != "" {
		card, err = pricing.LoadRateCardFile(path)
		if err != nil {
			logger.Fatal("failed to load rate card", zap.String("path", path), zap.Error(err))
		}
	}
	engine := pricing.NewEngine(card)

	paymentManager, err := newPaymentManager(cfg.Checkout, cfg.Security.Local(), logger)
	if err != nil {
		logger.Fatal("failed to initialise payments", zap.Error(err))
	}
	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Payments:          paymentManager,
		PreferredProvider: cfg.Checkout.Processor,
		Currency:          firstNonEmpty(cfg.Checkout.Currency, card.Currency),
		Timeout:           cfg.Checkout.Timeout,
		Metrics:           metrics,
		Logger:            observability.NewEventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	store, closeStore, err := newStateStore(cfg.Store)
	if err != nil {
		logger.Fatal("failed to initialise quote state store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("quote state store close error", zap.Error(err))
		}
	}()

	persister, err := services.NewStatePersister(services.StatePersisterDeps{
		Store:   store,
		Timeout: cfg.Store.WriteTimeout,
		Metrics: metrics,
		Logger:  observability.NewEventLogger(logger.Named("persist")),
	})
	if err != nil {
		logger.Fatal("failed to initialise state persister", zap.Error(err))
	}

	registry, err := services.NewWizardRegistry(services.WizardRegistryDeps{
		Wizard: services.WizardDeps{
			Resolver:       resolver,
			Engine:         engine,
			Checkout:       checkoutService,
			Persister:      persister,
			Metrics:        metrics,
			Logger:         observability.NewEventLogger(logger.Named("wizard")),
			ResolveTimeout: cfg.Catalog.RequestTimeout,
		},
		Store:   store,
		IdleTTL: cfg.Session.IdleTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise wizard registry", zap.Error(err))
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go registry.Run(sweepCtx, cfg.Session.SweepInterval)

	readiness, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "catalog", Timeout: 2 * time.Second, Check: catalogCheck},
		{Name: "store", Check: store.Ping},
	})
	if err != nil {
		logger.Fatal("failed to initialise readiness checks", zap.Error(err))
	}
	version, _ := lookup("QUOTE_BUILD_VERSION")
	health := handlers.NewHealthHandlers(
		handlers.WithReadiness(readiness),
		handlers.WithHealthBuildInfo(firstNonEmpty(version, "dev"), cfg.Security.Environment, startedAt),
	)

	wizardHandlers := handlers.NewWizardHandlers(registry, handlers.WithSettleTimeout(cfg.Catalog.RequestTimeout+time.Second))
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(cfg.Secrets.ProjectID),
			observability.RequestLoggerMiddleware(metrics),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithAPIMiddlewares(handlers.SessionMiddleware(handlers.SessionConfig{
			CookieName: cfg.Session.CookieName,
			SigningKey: []byte(cfg.Session.SigningKey),
			Secure:     cfg.Session.Secure,
		})),
		handlers.WithHealthHandlers(health),
		handlers.WithMetricsHandler(metrics.Handler()),
		handlers.WithWizardRoutes(wizardHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("quote api listening",
			zap.String("catalog", firstNonEmpty(cfg.Catalog.BaseURL, "static")),
			zap.String("store", cfg.Store.Driver),
			zap.String("processor", cfg.Checkout.Processor),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	registry.Close()
	if err := persister.Close(shutdownCtx); err != nil {
		logger.Warn("state persister did not drain", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, lookup func(string) (string, bool)) (*secrets.Fetcher, error) {
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}
	opts := []secrets.Option{secrets.WithLogger(logger.Named("secrets"))}
	if project := get("QUOTE_SECRETS_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if path := get("QUOTE_SECRETS_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// newResolver selects the remote catalog when a base URL is configured, the built-in one otherwise.
// The returned check backs the readiness probe.
func newResolver(cfg config.CatalogConfig, metrics *observability.Metrics, logger *zap.Logger) (*catalog.CachedResolver, func(context.Context) error, error) {
	var backend catalog.Backend
	if cfg.BaseURL == "" {
		logger.Warn("no catalog base url configured; serving the built-in catalog")
		backend = catalog.NewStatic()
	} else {
		client, err := catalog.NewClient(cfg.BaseURL, catalog.WithTimeout(cfg.RequestTimeout), catalog.WithRecorder(metrics))
		if err != nil {
			return nil, nil, err
		}
		backend = client
	}
	resolver, err := catalog.NewCachedResolver(backend, cfg.LanguageCacheTTL, metrics)
	if err != nil {
		return nil, nil, err
	}
	check := func(ctx context.Context) error {
		_, err := resolver.ListLanguages(ctx)
		return err
	}
	return resolver, check, nil
}

// newPaymentManager registers the processor client when it has somewhere to post to. Outside the local
// environment the offline processor is never registered.
func newPaymentManager(cfg config.CheckoutConfig, local bool, logger *zap.Logger) (*payments.Manager, error) {
	eventLogger := observability.NewEventLogger(logger.Named("payments"))
	providers := make(map[string]payments.Provider, 2)

	if cfg.BaseURL != "" || local {
		if cfg.BaseURL == "" {
			logger.Warn("no checkout base url configured; minting offline checkout sessions")
		}
		processor, err := payments.NewProcessorProvider(payments.ProcessorProviderConfig{
			BaseURL:          cfg.BaseURL,
			Offline:          cfg.BaseURL == "",
			RedirectTemplate: cfg.RedirectURL,
			Timeout:          cfg.Timeout,
			Logger:           eventLogger,
		})
		if err != nil {
			return nil, err
		}
		providers["processor"] = processor
	}

	if cfg.StripeAPIKey != "" {
		stripe, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:     cfg.StripeAPIKey,
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			Logger:     eventLogger,
		})
		if err != nil {
			return nil, err
		}
		providers["stripe"] = stripe
	}

	return payments.NewManager(providers, payments.WithDefaultProvider(cfg.Processor))
}

func newStateStore(cfg config.StoreConfig) (repositories.QuoteStateStore, func() error, error) {
	switch cfg.Driver {
	case "redis":
		store, err := redisRepo.NewStore(redisRepo.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "firestore":
		provider := pfirestore.NewProvider(pfirestore.Config{ProjectID: cfg.ProjectID, EmulatorHost: cfg.EmulatorHost})
		store, err := firestoreRepo.NewStore(provider, cfg.Collection, cfg.TTL)
		if err != nil {
			_ = provider.Close()
			return nil, nil, err
		}
		return store, provider.Close, nil
	default:
		return memory.NewStore(), func() error { return nil }, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
