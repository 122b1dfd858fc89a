// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingToken is returned by Load when no bot credential is configured.
var ErrMissingToken = errors.New("BOT_TOKEN is not set")

// Config holds all application configuration.
type Config struct {
	Env        string
	Port       string
	BotToken   string
	Telegram   TelegramConfig
	SheetSync  SheetSyncConfig
	Journal    JournalConfig
	Dialog     DialogConfig
	Admin      AdminConfig
	OpenAI     OpenAIConfig
	Transcript TranscriptConfig
	OTel       OTelConfig

	// SessionIdleTTL evicts conversations untouched for this long. Zero keeps
	// them for the lifetime of the process.
	SessionIdleTTL time.Duration
}

// TelegramConfig selects how updates are received.
type TelegramConfig struct {
	WebhookURL    string
	WebhookSecret string
}

// SheetSyncConfig controls incremental sync to the remote spreadsheet endpoint.
type SheetSyncConfig struct {
	URL       string
	Timeout   time.Duration
	Workers   int
	QueueSize int
}

// JournalConfig controls the local SQLite dispatch journal.
type JournalConfig struct {
	Enabled   bool
	DBPath    string
	Retention time.Duration
}

// DialogConfig tunes cosmetic parts of the conversation.
type DialogConfig struct {
	CountdownSteps    int
	CountdownInterval time.Duration
}

// AdminConfig guards the read-only admin API.
type AdminConfig struct {
	APIKey string
}

// TranscriptConfig controls per-conversation transition logs.
type TranscriptConfig struct {
	Dir       string
	QueueSize int
}

// OpenAIConfig configures the optional recommendation engine.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OTelConfig configures OTLP export of traces and logs.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := getEnv("BOT_TOKEN", "")
	if token == "" {
		token = getEnv("TELEGRAM_BOT_TOKEN", "")
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		BotToken: strings.TrimSpace(token),
		Telegram: TelegramConfig{
			WebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		SheetSync: SheetSyncConfig{
			URL:       strings.TrimSpace(getEnv("SHEET_SYNC_URL", "")),
			Timeout:   getEnvDuration("SHEET_SYNC_TIMEOUT", 10*time.Second),
			Workers:   getEnvInt("SHEET_SYNC_WORKERS", 4),
			QueueSize: getEnvInt("SHEET_SYNC_QUEUE_SIZE", 256),
		},
		Journal: JournalConfig{
			Enabled:   getEnvBool("JOURNAL_ENABLED", true),
			DBPath:    getEnv("DB_PATH", "./data/intake.db"),
			Retention: getEnvDuration("JOURNAL_RETENTION", 30*24*time.Hour),
		},
		Dialog: DialogConfig{
			CountdownSteps:    getEnvInt("COUNTDOWN_STEPS", 5),
			CountdownInterval: getEnvDuration("COUNTDOWN_INTERVAL", time.Second),
		},
		Admin: AdminConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("RECOMMEND_TIMEOUT", 15*time.Second),
		},
		Transcript: TranscriptConfig{
			Dir:       getEnv("TRANSCRIPT_DIR", ""),
			QueueSize: getEnvInt("TRANSCRIPT_QUEUE_SIZE", 256),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "intake-bot"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SheetSync.Timeout <= 0 {
		return fmt.Errorf("SHEET_SYNC_TIMEOUT must be > 0")
	}
	if c.SheetSync.Workers <= 0 {
		return fmt.Errorf("SHEET_SYNC_WORKERS must be > 0")
	}
	if c.SheetSync.QueueSize <= 0 {
		return fmt.Errorf("SHEET_SYNC_QUEUE_SIZE must be > 0")
	}
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when the journal is enabled")
	}
	if c.Dialog.CountdownSteps < 0 {
		return fmt.Errorf("COUNTDOWN_STEPS must be >= 0")
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be >= 0")
	}
	if c.Telegram.WebhookURL != "" && !strings.HasPrefix(c.Telegram.WebhookURL, "https://") {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL must use https")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Enabled reports whether remote sync has an endpoint.
func (c SheetSyncConfig) Enabled() bool {
	return c.URL != ""
}

// Enabled reports whether webhook mode is selected over long polling.
func (c TelegramConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// Enabled reports whether the admin API should be mounted.
func (c AdminConfig) Enabled() bool {
	return c.APIKey != ""
}

// Enabled reports whether recommendations can be requested.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Enabled reports whether transcripts are written.
func (c TranscriptConfig) Enabled() bool {
	return c.Dir != ""
}

// Enabled reports whether OTLP export is configured.
func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
