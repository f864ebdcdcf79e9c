// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Seat policies.
const (
	SeatPolicyClient = "client"
	SeatPolicyServer = "server"
)

// Bot modes.
const (
	BotModeWebhook = "webhook"
	BotModePolling = "polling"
	BotModeOff     = "off"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port        string
	PingMessage string
	StaticDir   string

	LogLevel  string
	LogFormat string

	Database Database

	SeatPolicy     string
	RateLimit      int
	AllowedOrigins []string

	Telegram Telegram
	NATS     NATS

	NotifyTimeout time.Duration
}

// Database holds store settings. URL wins over the discrete Postgres fields.
type Database struct {
	Driver      string
	URL         string
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	SQLitePath  string
	AutoMigrate bool
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Telegram holds bot settings. An empty Token disables the bot and the
// admin notifications.
type Telegram struct {
	Token         string
	AdminChatID   int64
	AllowedChats  []int64
	WebhookSecret string
	BotMode       string
}

// NATS holds the optional event publisher settings. An empty URL disables it.
type NATS struct {
	URL     string
	Token   string
	Subject string
}

// Load reads configuration from environment variables, loading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		PingMessage: getEnv("PING_MESSAGE", "ping"),
		StaticDir:   strings.TrimSpace(os.Getenv("STATIC_DIR")),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Database: Database{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			URL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Name:        getEnv("DB_NAME", "mantikon"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SQLitePath:  getEnv("DB_PATH", "./data/app.db"),
			AutoMigrate: true,
		},
		SeatPolicy:     strings.ToLower(getEnv("SEAT_POLICY", SeatPolicyClient)),
		RateLimit:      30,
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Telegram: Telegram{
			Token:         strings.TrimSpace(os.Getenv("TG_BOT_TOKEN")),
			WebhookSecret: strings.TrimSpace(os.Getenv("TG_WEBHOOK_SECRET")),
			BotMode:       strings.ToLower(getEnv("TG_BOT_MODE", BotModeWebhook)),
		},
		NATS: NATS{
			URL:     strings.TrimSpace(os.Getenv("NATS_URL")),
			Token:   strings.TrimSpace(os.Getenv("NATS_TOKEN")),
			Subject: getEnv("NATS_SUBJECT", "registrations.created"),
		},
		NotifyTimeout: 10 * time.Second,
	}

	var invalid []string

	if v := strings.TrimSpace(os.Getenv("DB_AUTO_MIGRATE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "DB_AUTO_MIGRATE")
		} else {
			cfg.Database.AutoMigrate = b
		}
	}

	if v := strings.TrimSpace(os.Getenv("REGISTER_RATE_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			invalid = append(invalid, "REGISTER_RATE_LIMIT")
		} else {
			cfg.RateLimit = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("NOTIFY_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			invalid = append(invalid, "NOTIFY_TIMEOUT")
		} else {
			cfg.NotifyTimeout = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("TG_ADMIN_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			invalid = append(invalid, "TG_ADMIN_CHAT_ID")
		} else {
			cfg.Telegram.AdminChatID = id
		}
	}

	for _, v := range splitList(os.Getenv("TG_ALLOWED_CHAT_IDS")) {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			invalid = append(invalid, "TG_ALLOWED_CHAT_IDS")
			break
		}
		cfg.Telegram.AllowedChats = append(cfg.Telegram.AllowedChats, id)
	}

	if disabled, _ := strconv.ParseBool(os.Getenv("DISABLE_TELEGRAM_BOT")); disabled {
		cfg.Telegram.BotMode = BotModeOff
	}

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		invalid = append(invalid, "DB_DRIVER")
	}
	switch cfg.SeatPolicy {
	case SeatPolicyClient, SeatPolicyServer:
	default:
		invalid = append(invalid, "SEAT_POLICY")
	}
	switch cfg.Telegram.BotMode {
	case BotModeWebhook, BotModePolling, BotModeOff:
	default:
		invalid = append(invalid, "TG_BOT_MODE")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		invalid = append(invalid, "LOG_FORMAT")
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
