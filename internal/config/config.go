package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                           string `mapstructure:"PORT"`
	AllowedOrigin                  string `mapstructure:"ALLOWED_ORIGIN"`
	DatabaseURL                    string `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns                 int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	SQLiteBusyTimeoutMS            int    `mapstructure:"SQLITE_BUSY_TIMEOUT_MS"`
	RedisAddr                      string `mapstructure:"REDIS_ADDR"`
	RedisPassword                  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB                        int    `mapstructure:"REDIS_DB"`
	StockCacheTTLSeconds           int    `mapstructure:"STOCK_CACHE_TTL_SECONDS"`
	KafkaBrokers                   string `mapstructure:"KAFKA_BROKERS"`
	TicketTopic                    string `mapstructure:"TICKET_TOPIC"`
	AuthSecret                     string `mapstructure:"AUTH_SECRET"`
	AccessTokenTTLMinutes          int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	ManagerPIN                     string `mapstructure:"MANAGER_PIN"`
	CommitMaxAttempts              int    `mapstructure:"COMMIT_MAX_ATTEMPTS"`
	CommitRetryDelayMS             int    `mapstructure:"COMMIT_RETRY_DELAY_MS"`
	RequireNotesOnCriticalVariance bool   `mapstructure:"REQUIRE_NOTES_ON_CRITICAL_VARIANCE"`
	SeedDemoData                   bool   `mapstructure:"SEED_DEMO_DATA"`
	LogLevel                       string `mapstructure:"LOG_LEVEL"`
	LogFormat                      string `mapstructure:"LOG_FORMAT"`
	StoreTimezone                  string `mapstructure:"STORE_TIMEZONE"`

	// Location is StoreTimezone resolved; daily reports cut days in it.
	Location *time.Location `mapstructure:"-"`
}

// Load reads configuration from an optional .env file in the working
// directory and the process environment, the latter taking precedence.
// AUTH_SECRET and MANAGER_PIN are never defaulted.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("SQLITE_BUSY_TIMEOUT_MS", 5000)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STOCK_CACHE_TTL_SECONDS", 20)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TICKET_TOPIC", "pos.tickets")
	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("MANAGER_PIN", "")
	v.SetDefault("COMMIT_MAX_ATTEMPTS", 3)
	v.SetDefault("COMMIT_RETRY_DELAY_MS", 1000)
	v.SetDefault("REQUIRE_NOTES_ON_CRITICAL_VARIANCE", true)
	v.SetDefault("SEED_DEMO_DATA", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("STORE_TIMEZONE", "UTC")

	// A missing .env is fine; the environment alone is enough.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.StockCacheTTLSeconds < 1 {
		cfg.StockCacheTTLSeconds = 20
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.CommitMaxAttempts < 1 {
		cfg.CommitMaxAttempts = 3
	}
	if cfg.CommitRetryDelayMS < 0 {
		cfg.CommitRetryDelayMS = 1000
	}
	if cfg.DBMaxOpenConns < 1 {
		cfg.DBMaxOpenConns = 10
	}
	cfg.StoreTimezone = strings.TrimSpace(cfg.StoreTimezone)
	if cfg.StoreTimezone == "" {
		cfg.StoreTimezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.StoreTimezone)
	if err != nil {
		return Config{}, fmt.Errorf("config: STORE_TIMEZONE %q: %w", cfg.StoreTimezone, err)
	}
	cfg.Location = loc
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
