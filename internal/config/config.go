package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session store backends
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string  `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminUserIDs  []int64 `mapstructure:"-"`

	// Bot mode configuration
	WebhookMode bool   `mapstructure:"WEBHOOK_MODE"` // If true, use webhook mode; if false, use polling mode
	WebhookURL  string `mapstructure:"WEBHOOK_URL"`  // Required if WebhookMode is true

	// Postgres
	UseMockDB   bool   `mapstructure:"USE_MOCK_DB"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// Conversation sessions
	SessionStore string        `mapstructure:"SESSION_STORE"`
	RedisURL     string        `mapstructure:"REDIS_URL"`
	SessionTTL   time.Duration `mapstructure:"SESSION_TTL"`

	// ClickHouse analytics, disabled when the host is empty
	ClickHouseHost     string `mapstructure:"CLICKHOUSE_HOST"`
	ClickHousePort     int    `mapstructure:"CLICKHOUSE_PORT"`
	ClickHouseDatabase string `mapstructure:"CLICKHOUSE_DATABASE"`
	ClickHouseUser     string `mapstructure:"CLICKHOUSE_USER"`
	ClickHousePassword string `mapstructure:"CLICKHOUSE_PASSWORD"`
	ClickHouseUseTLS   bool   `mapstructure:"CLICKHOUSE_USE_TLS"`

	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel  string `mapstructure:"OPENAI_MODEL"`

	MercadoPagoAccessToken string `mapstructure:"MERCADOPAGO_ACCESS_TOKEN"`
	// PublicURL is the externally reachable base URL used for payment callbacks
	PublicURL string `mapstructure:"PUBLIC_URL"`

	Port     string `mapstructure:"PORT"`
	Timezone string `mapstructure:"TIMEZONE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Env      string `mapstructure:"ENV"`
}

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "ADMIN_USER_IDS", "WEBHOOK_MODE", "WEBHOOK_URL",
	"USE_MOCK_DB", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SESSION_STORE", "REDIS_URL", "SESSION_TTL",
	"CLICKHOUSE_HOST", "CLICKHOUSE_PORT", "CLICKHOUSE_DATABASE", "CLICKHOUSE_USER",
	"CLICKHOUSE_PASSWORD", "CLICKHOUSE_USE_TLS",
	"OPENAI_API_KEY", "OPENAI_MODEL", "MERCADOPAGO_ACCESS_TOKEN", "PUBLIC_URL",
	"PORT", "TIMEZONE", "LOG_LEVEL", "ENV",
}

// Load reads .env if present and then the environment.
// It reports whether a .env file was found.
func Load() (*Config, bool, error) {
	found := godotenv.Load() == nil
	cfg, err := LoadFromEnv()
	return cfg, found, err
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("WEBHOOK_MODE", false)
	v.SetDefault("USE_MOCK_DB", false)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("CLICKHOUSE_PORT", 9000) // native port
	v.SetDefault("CLICKHOUSE_DATABASE", "default")
	v.SetDefault("CLICKHOUSE_USER", "default")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("PORT", "8080")
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENV", "production")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	ids, err := ParseUserIDs(v.GetString("ADMIN_USER_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.AdminUserIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseUserIDs parses a comma-separated list of Telegram user ids
func ParseUserIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("ADMIN_USER_IDS is required (comma-separated list of Telegram user IDs)")
	}

	var ids []int64
	for _, idStr := range strings.Split(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID in ADMIN_USER_IDS: %s", idStr)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	if c.WebhookMode && c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
	}
	if !c.UseMockDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when USE_MOCK_DB is not set")
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE is redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, c.SessionStore)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// IsDev reports whether the app runs in development mode
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// AnalyticsEnabled reports whether a ClickHouse host is configured
func (c *Config) AnalyticsEnabled() bool {
	return c.ClickHouseHost != ""
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAdmin reports whether userID is a configured admin
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
