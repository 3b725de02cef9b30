package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Sessions
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"20s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1s"`
	StoreShards   int           `env:"STORE_SHARDS" envDefault:"32"`

	// Notes API
	OSMAPIURL      string        `env:"OSM_API_URL" envDefault:"http://localhost:8080"`
	OSMAccessToken string        `env:"OSM_ACCESS_TOKEN"`
	OSMTimeout     time.Duration `env:"OSM_TIMEOUT" envDefault:"10s"`

	// Callback channel
	CallbackURL     string        `env:"CALLBACK_URL"`
	CallbackTimeout time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"10s"`
	AMQPURL         string        `env:"AMQP_URL"`
	AMQPExchange    string        `env:"AMQP_EXCHANGE" envDefault:"terranote.events"`

	// Event log
	EventsBackend       string `env:"EVENTS_BACKEND" envDefault:"memory"`
	EventsMaxStored     int    `env:"EVENTS_MAX_STORED" envDefault:"1000"`
	DatabaseURL         string `env:"DATABASE_URL"`
	EventsDynamoDBTable string `env:"EVENTS_DYNAMODB_TABLE"`

	// Postgres pool, only used by the postgres events backend
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"4"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"0"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`

	// WhatsApp
	WhatsAppVerifyToken string `env:"WHATSAPP_VERIFY_TOKEN"`

	// Telegram logging
	BotToken          string `env:"BOT_TOKEN"`
	LogTelegramChatID int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int    `env:"LOG_TOPIC_ERROR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.StoreShards <= 0 {
		return fmt.Errorf("STORE_SHARDS must be positive, got %d", c.StoreShards)
	}
	if strings.TrimSpace(c.OSMAPIURL) == "" {
		return fmt.Errorf("OSM_API_URL is required")
	}
	switch c.EventsBackend {
	case EventsBackendMemory:
	case EventsBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s events backend", c.EventsBackend)
		}
		if c.DBMaxConns <= 0 {
			return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
		}
	case EventsBackendDynamoDB:
		if c.EventsDynamoDBTable == "" {
			return fmt.Errorf("EVENTS_DYNAMODB_TABLE is required for the %s events backend", c.EventsBackend)
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TelegramAlertsEnabled reports whether publish failures should be mirrored
// to a Telegram chat.
func (c *Config) TelegramAlertsEnabled() bool {
	return c.BotToken != "" && c.LogTelegramChatID != 0
}
