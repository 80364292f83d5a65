// Command consentcore boots the Consent & Scope Authorization Core HTTP
// service, adapted from cmd/web/main.go's bootstrap shape: config, logger,
// tracing, stores, router, graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hushh-labs/consent-core/internal/config"
	"github.com/hushh-labs/consent-core/internal/httpapi"
	"github.com/hushh-labs/consent-core/internal/logging"
	"github.com/hushh-labs/consent-core/internal/ratelimit"
	"github.com/hushh-labs/consent-core/internal/secrets"
	"github.com/hushh-labs/consent-core/internal/tracing"
	"github.com/hushh-labs/consent-core/pkg/approval"
	"github.com/hushh-labs/consent-core/pkg/ledger"
	"github.com/hushh-labs/consent-core/pkg/metrics"
	"github.com/hushh-labs/consent-core/pkg/notify"
	"github.com/hushh-labs/consent-core/pkg/revocation"
	"github.com/hushh-labs/consent-core/pkg/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "consentcore: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg)

	tp, err := tracing.NewTracerProvider(tracing.Config{
		ServiceName:    "consentcore",
		ServiceVersion: "1.0.0",
		Environment:    envName(cfg.ProductionMode),
	})
	if err != nil {
		logger.WithError(err).Warn("tracing disabled: failed to start tracer provider")
		tp = nil
	}

	secretResolver, err := secrets.NewResolver(cfg.VaultAddr)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize secret resolver")
	}
	rawSecret, err := secretResolver.Resolve(context.Background(), cfg.SecretKey)
	if err != nil {
		logger.WithError(err).Fatal("failed to resolve SECRET_KEY")
	}
	signingKey, err := secrets.DeriveKey(rawSecret, "consentcore-token-hmac", 32)
	if err != nil {
		logger.WithError(err).Fatal("failed to derive token signing key")
	}

	codec, err := token.NewCodec(signingKey)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize token codec")
	}

	ledgerStore, err := newLedgerStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize ledger store")
	}
	led := ledger.New(ledgerStore)

	revocationIndex := revocation.New(newDurableRevocationStore(cfg, logger))

	registry := approval.NewMemoryRegistry()
	for _, dev := range cfg.Developers {
		registry.Register(dev.Token, approval.Developer{Name: dev.Name, ApprovedScopes: dev.ApprovedScopes})
	}
	coordinator := approval.New(led, registry, codec)

	bus := notify.NewBus(led)

	handlers := &httpapi.Handlers{
		Codec:       codec,
		Ledger:      led,
		Coordinator: coordinator,
		Revocation:  revocationIndex,
		Bus:         bus,
		Logger:      logger,
		Tracer:      tp,
		Metrics:     metrics.NewCollector(),
		PollTimeout: cfg.ConsentTimeout,
	}

	router := httpapi.NewRouter(handlers, ratelimit.NewLimiters(), cfg.FrontendURL)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed to start")
		}
	}()

	logger.WithField("port", cfg.Port).Info("consent core started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown failed")
		}
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}

	logger.Info("consent core exited")
}

func envName(productionMode bool) string {
	if productionMode {
		return "production"
	}
	return "development"
}

// newLedgerStore picks the durable Postgres store when DATABASE_URL is
// configured, and falls back to the in-memory store otherwise — acceptable
// for a single-instance deployment but without spec's cross-instance
// durability guarantee.
func newLedgerStore(cfg *config.Config) (ledger.Store, error) {
	if cfg.DatabaseURL == "" {
		return ledger.NewMemoryStore(), nil
	}
	return ledger.NewSQLStore(ledger.SQLConfig{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
}

// newDurableRevocationStore mirrors newLedgerStore's fallback: Redis when
// configured, process-local-only revocation otherwise.
func newDurableRevocationStore(cfg *config.Config, logger interface{ Warn(args ...interface{}) }) revocation.Durable {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := revocation.NewRedisClient(cfg.RedisAddr, "", 0)
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, revocation index will be process-local only")
		return nil
	}
	return revocation.NewRedisStore(client, "")
}
