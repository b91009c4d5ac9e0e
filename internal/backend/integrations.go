package backend

import (
	"context"
	"errors"

	"splitpay/internal/amqp"
	"splitpay/internal/config"
	applog "splitpay/internal/log"
	"splitpay/internal/notify"
	"splitpay/internal/services"
	"splitpay/internal/sheets/google"
)

// Integrations are the optional side channels around the ledger. A field is
// nil when the channel is not configured or failed to start.
type Integrations struct {
	Publisher *amqp.Client
	Sheets    *google.Client
	Notifier  *notify.Telegram
}

// CreateIntegrations starts every configured side channel. Failures are logged
// and the channel is left disabled, so the ledger keeps working without it.
func CreateIntegrations(ctx context.Context, cfg *config.Config, logger *applog.Logger) *Integrations {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentBackend)
	in := &Integrations{}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			in.Publisher = client
		}
	}

	if cfg.SheetsEnabled() {
		client, err := google.New(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Warn("Failed to initialize Google Sheets mirror, continuing without it", applog.FieldError, err)
		} else {
			in.Sheets = client
		}
	}

	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("Failed to initialize Telegram notifier, continuing without it", applog.FieldError, err)
		} else {
			in.Notifier = tg
		}
	}

	return in
}

// Apply sets the enabled channels on opts. Disabled ones stay nil interfaces.
func (in *Integrations) Apply(opts *services.Options) {
	if in.Publisher != nil {
		opts.Publisher = in.Publisher
	}
	if in.Sheets != nil {
		opts.Mirror = in.Sheets
		opts.Source = in.Sheets
	}
	if in.Notifier != nil {
		opts.Notifier = in.Notifier
	}
}

// Close releases the AMQP connection, if any.
func (in *Integrations) Close() error {
	var errs []error
	if in.Publisher != nil {
		errs = append(errs, in.Publisher.Close())
	}
	return errors.Join(errs...)
}
