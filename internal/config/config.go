package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Password gate
	AppPassword   string
	SessionSecret string
	SessionTTL    time.Duration

	// Subscription
	ServiceName   string
	Price         string
	BaseCurrency  string
	LocalCurrency string

	// Exchange rate
	RateAPIURL   string
	RateTimeout  time.Duration
	FallbackRate float64

	// State
	DefaultMembers []string
	StateBackend   string
	StateFile      string
	SQLiteDBPath   string
	PostgresDSN    string
	S3Bucket       string
	S3Key          string
	S3Region       string
	S3Endpoint     string
	S3PathStyle    bool

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Telegram (optional)
	TelegramToken  string
	TelegramChatID int64

	// Logging
	LogLevel  string
	LogFormat string

	Timezone string
}

var validBackends = []string{"file", "memory", "sqlite", "postgres", "s3"}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		AppPassword:   getEnv("APP_PASSWORD", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),

		ServiceName:   getEnv("SERVICE_NAME", "ChatGPT"),
		Price:         getEnv("PRICE", "20.00"),
		BaseCurrency:  getEnv("BASE_CURRENCY", "USD"),
		LocalCurrency: getEnv("LOCAL_CURRENCY", "JPY"),

		RateAPIURL:   getEnv("RATE_API_URL", "https://api.frankfurter.app/latest"),
		RateTimeout:  getEnvDuration("RATE_TIMEOUT", 3*time.Second),
		FallbackRate: getEnvFloat("FALLBACK_RATE", 150.0),

		DefaultMembers: getEnvList("DEFAULT_MEMBERS"),
		StateBackend:   getEnv("STATE_BACKEND", "file"),
		StateFile:      getEnv("STATE_FILE", "./payment_data.json"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/splitpay.db"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Key:          getEnv("S3_KEY", "payment_data.json"),
		S3Region:       getEnv("S3_REGION", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3PathStyle:    getEnvBool("S3_PATH_STYLE", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "splitpay"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "tint"),

		Timezone: getEnv("TIMEZONE", "Local"),
	}

	return cfg
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// TelegramEnabled reports whether notices can be pushed to a chat.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Validate validates the configuration and returns an error if invalid.
// The password is checked separately by ValidateServe since only the web
// server needs it.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Price == "" {
		errors = append(errors, "price cannot be empty")
	}
	if c.BaseCurrency == "" || c.LocalCurrency == "" {
		errors = append(errors, "base and local currency codes are required")
	}

	if c.RateAPIURL == "" {
		errors = append(errors, "rate API URL cannot be empty")
	} else if u, err := url.Parse(c.RateAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid rate API URL '%s': must be http or https", c.RateAPIURL))
	}
	if c.RateTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be positive", c.RateTimeout))
	} else if c.RateTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be at most 1 minute", c.RateTimeout))
	}
	if c.FallbackRate <= 0 {
		errors = append(errors, fmt.Sprintf("invalid fallback rate %v: must be positive", c.FallbackRate))
	}

	if !slices.Contains(validBackends, c.StateBackend) {
		errors = append(errors, fmt.Sprintf("invalid state backend '%s': must be one of %v", c.StateBackend, validBackends))
	}

	switch c.StateBackend {
	case "file":
		if c.StateFile == "" {
			errors = append(errors, "state file path cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			errors = append(errors, "S3_BUCKET is required when using s3 backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		errors = append(errors, "TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	if c.Timezone != "" && c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
		}
	}

	for _, m := range c.DefaultMembers {
		if len([]rune(m)) > 50 {
			errors = append(errors, fmt.Sprintf("default member '%s' is longer than 50 characters", m))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateServe checks what the web server needs on top of Validate.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.AppPassword == "" {
		return fmt.Errorf("configuration validation failed:\n- APP_PASSWORD is required to run the web server")
	}
	if c.SessionTTL < time.Minute {
		return fmt.Errorf("configuration validation failed:\n- invalid session TTL %v: must be at least 1 minute", c.SessionTTL)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
