package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"splitpay/internal/auth"
	apphttp "splitpay/internal/http"
	applog "splitpay/internal/log"
	"splitpay/internal/middleware/ratelimit"
	"splitpay/internal/middleware/session"
)

const shutdownTimeout = 30 * time.Second

// serveCommand runs the web page until SIGINT or SIGTERM.
func serveCommand(rt *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the password-protected ledger page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.cfg.ValidateServe(); err != nil {
				return err
			}
			return serve(cmd.Context(), rt)
		},
	}
}

func serve(ctx context.Context, rt *appEnv) error {
	cfg, logger := rt.cfg, rt.logger

	app, err := rt.open(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close resources", applog.FieldError, err)
		}
	}()

	gate, err := auth.NewGate(cfg.AppPassword)
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}
	jwt, err := auth.NewJWTManager(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}

	checks := map[string]func(context.Context) error{}
	if app.Ping != nil {
		checks["storage"] = app.Ping
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:          ":" + cfg.Port,
		Ledger:        app.Ledger,
		Gate:          gate,
		Sessions:      session.NewManager(jwt),
		Metrics:       app.Metrics,
		Gatherer:      app.Registry,
		Logger:        logger,
		Checks:        checks,
		NotifyEnabled: app.Integrations.Notifier != nil,
		SheetEnabled:  app.Integrations.Sheets != nil,
		RateLimit:     ratelimit.DefaultConfig(),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting splitpay server",
			"port", cfg.Port,
			"backend", cfg.StateBackend,
			"service", cfg.ServiceName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
