package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/graphgate/graphgate/internal/adapter/driven/msgraph"
	sqliteadapter "github.com/graphgate/graphgate/internal/adapter/driven/sqlite"
	httphandler "github.com/graphgate/graphgate/internal/adapter/driving/http"
	"github.com/graphgate/graphgate/internal/application"
	"github.com/graphgate/graphgate/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"tenant_id", cfg.TenantID,
		"session_ttl", cfg.SessionTTL,
		"token_sealing", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	// 5. Create driven adapters.
	credentialRepo, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	sessionRepo := sqliteadapter.NewSessionRepo(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepo(db)

	provider := msgraph.NewProvider(cfg.ClientID, cfg.ClientSecret, cfg.TenantID, cfg.RedirectURI)
	mailClient := msgraph.NewMailClient()

	// 6. Create application services.
	exchangeSvc := application.NewExchangeService(provider, credentialRepo, sessionRepo, cfg.SessionTTL, slog.Default())
	keySvc := application.NewKeyService(credentialRepo, sessionRepo, apiKeyRepo, slog.Default())
	resolver := application.NewResolver(credentialRepo, sessionRepo, apiKeyRepo, provider, slog.Default())

	// 7. Create HTTP handler and register routes.
	handler := httphandler.NewHandler(exchangeSvc, keySvc, resolver, mailClient, cfg.RedirectURI, cfg.SessionTTL, slog.Default())
	mux := httphandler.NewServeMux(handler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("graphgate started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
