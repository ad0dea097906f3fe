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

	githubadapter "github.com/ericfisherdev/wpdispatch/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/wpdispatch/internal/adapter/driven/sqlite"
	wpadapter "github.com/ericfisherdev/wpdispatch/internal/adapter/driven/wordpress"
	httphandler "github.com/ericfisherdev/wpdispatch/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web"
	"github.com/ericfisherdev/wpdispatch/internal/application"
	"github.com/ericfisherdev/wpdispatch/internal/config"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo,
		"wordpress", cfg.HasWordPress(),
	)

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
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
	slog.Info("migrations complete")

	// 5. Wire adapters.
	ghClient, err := githubadapter.NewClient(
		cfg.GitHub.Token,
		cfg.GitHub.Owner,
		cfg.GitHub.Repo,
		cfg.GitHub.APIURL,
		cfg.RateLimitMaxWait,
	)
	if err != nil {
		return err
	}
	dispatchStore := sqliteadapter.NewDispatchRepo(db)

	// Left as a nil interface when unset so the proxy answers 503.
	var wpClient driven.WordPressClient
	if cfg.HasWordPress() {
		wpClient = wpadapter.NewClient(cfg.WordPressURL)
		slog.Info("wordpress proxy enabled", "site", cfg.WordPressURL)
	}

	// 6. Create workflow service.
	workflowSvc := application.NewWorkflowService(ghClient, dispatchStore)

	// 7. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(workflowSvc, wpClient, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	// 8. Create web handler and register GUI routes.
	webHandler := webhandler.NewHandler(workflowSvc, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Dispatch may wait out a rate-limit backoff before answering.
		WriteTimeout: 30*time.Second + 3*cfg.RateLimitMaxWait,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	slog.Info("wpdispatch started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		return err
	}

	// 10. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
