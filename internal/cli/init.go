// Package cli provides the start-up shared by every splitpay command: env
// loading, logging, configuration and the ledger service with its backends.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"splitpay/internal/backend"
	"splitpay/internal/config"
	"splitpay/internal/core"
	applog "splitpay/internal/log"
	"splitpay/internal/metrics"
	"splitpay/internal/rates"
	"splitpay/internal/services"
	"splitpay/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT and
// sets it as the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App bundles what the commands share.
type App struct {
	Config       *config.Config
	Logger       *applog.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Store        *storage.StateStore
	Ledger       *services.LedgerService
	Integrations *backend.Integrations
	// Ping probes the state backend; nil when it has no connection.
	Ping func(ctx context.Context) error
}

// Pricing converts the configured price into the domain type.
func Pricing(cfg *config.Config) (core.Pricing, error) {
	cents, err := core.ParseDecimalToCents(cfg.Price)
	if err != nil {
		return core.Pricing{}, fmt.Errorf("invalid PRICE %q: %w", cfg.Price, err)
	}
	price := core.Money{Cents: cents}
	if err := price.Validate(); err != nil {
		return core.Pricing{}, fmt.Errorf("invalid PRICE %q: %w", cfg.Price, err)
	}
	return core.Pricing{
		ServiceName:   cfg.ServiceName,
		Price:         price,
		BaseCurrency:  cfg.BaseCurrency,
		LocalCurrency: cfg.LocalCurrency,
	}, nil
}

// NewApp opens the state backend and builds the ledger service. Side channels
// (AMQP, Sheets, Telegram) are started only when withIntegrations is set.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, withIntegrations bool) (*App, error) {
	pricing, err := Pricing(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewStateStore(res.Blob, core.DefaultState(cfg.DefaultMembers), m)

	provider := rates.NewHTTPProvider(rates.Config{
		URL:      cfg.RateAPIURL,
		Base:     cfg.BaseCurrency,
		Target:   cfg.LocalCurrency,
		Timeout:  cfg.RateTimeout,
		Fallback: cfg.FallbackRate,
	}, nil, m)

	opts := services.Options{
		Pricing:  pricing,
		Rates:    provider,
		Location: cfg.Location(),
		Metrics:  m,
	}

	integrations := &backend.Integrations{}
	if withIntegrations {
		integrations = backend.CreateIntegrations(ctx, cfg, logger)
		integrations.Apply(&opts)
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Registry:     reg,
		Metrics:      m,
		Store:        store,
		Ledger:       services.NewLedgerService(store, opts),
		Integrations: integrations,
		Ping:         res.Ping,
	}, nil
}

// Close releases the integrations and the state backend.
func (a *App) Close() error {
	return errors.Join(a.Integrations.Close(), a.Store.Close())
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
