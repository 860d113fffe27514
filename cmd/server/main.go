package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/roadside-matching/internal/authz"
	"github.com/example/roadside-matching/internal/config"
	"github.com/example/roadside-matching/internal/directory"
	"github.com/example/roadside-matching/internal/dispatch"
	"github.com/example/roadside-matching/internal/events"
	httpapi "github.com/example/roadside-matching/internal/http"
	"github.com/example/roadside-matching/internal/identity"
	"github.com/example/roadside-matching/internal/lifecycle"
	"github.com/example/roadside-matching/internal/logging"
	"github.com/example/roadside-matching/internal/storage"
)

type store interface {
	storage.ProviderStore
	storage.RequestStore
}

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, ready, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		logger.Error("identity init failed", "error", err)
		os.Exit(1)
	}

	wsreg := dispatch.NewWSRegistry()
	fanout := dispatch.NewFanout(cfg.NotifyTimeout, logger)
	fanout.Register("websocket", wsreg)
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kp.Close() }()
		fanout.Register("kafka", kp)
	}
	if cfg.WebhookURL != "" {
		fanout.Register("webhook", dispatch.NewWebhookDispatcher(cfg.WebhookURL, cfg.WebhookToken))
	}

	dir := directory.New(st, nil, logger)
	requests := lifecycle.New(st, dir, authz.NewGate(dir), fanout, nil, logger)

	api := httpapi.NewServer(httpapi.Options{
		Directory:       dir,
		Requests:        requests,
		Verifier:        verifier,
		WSReg:           wsreg,
		DefaultRadiusKm: cfg.DefaultRadiusKm,
		CORSOrigins:     cfg.CORSOrigins,
		Ready:           ready,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("roadside-matching listening", "addr", cfg.HTTPAddr, "auth_mode", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	fanout.Wait()
}

// openStore picks Postgres when PG_DSN is set and the memory store otherwise.
func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (store, func(context.Context) error, func(), error) {
	if cfg.PGDSN == "" {
		logger.Warn("PG_DSN not set, using in-memory store")
		return storage.NewMemoryStore(), nil, func() {}, nil
	}
	pg, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.RunMigrations {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, nil, err
		}
		logger.Info("migration applied")
	}
	return pg, pg.Ping, func() { _ = pg.Close() }, nil
}

func newVerifier(ctx context.Context, cfg config.ServerConfig) (identity.Verifier, error) {
	if cfg.AuthMode == config.AuthFirebase {
		client, err := identity.NewFirebaseAuth(ctx, identity.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentials,
		})
		if err != nil {
			return nil, err
		}
		return identity.NewFirebaseVerifier(client), nil
	}
	accounts, err := identity.ParseStaticTokens(cfg.StaticTokens)
	if err != nil {
		return nil, err
	}
	return identity.NewStaticVerifier(accounts), nil
}
