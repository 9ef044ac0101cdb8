package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	OpsAddr string `envconfig:"OPS_ADDR" default:":8080"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`
	AdminChatID int64  `envconfig:"ADMIN_CHAT_ID" required:"true"`

	POSBaseURL  string        `envconfig:"POS_BASE_URL" required:"true" validate:"url"`
	POSLogin    string        `envconfig:"POS_LOGIN" required:"true"`
	POSPassword string        `envconfig:"POS_PASSWORD" required:"true"`
	POSTimeout  time.Duration `envconfig:"POS_TIMEOUT" default:"60s"`

	RedisAddr string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"300s"`

	ReportTime        string `envconfig:"DEFAULT_REPORT_TIME" default:"23:00" validate:"datetime=15:04"`
	AlertThresholdPct int    `envconfig:"DEFAULT_ALERT_THRESHOLD_PCT" default:"15"`
	RollingDays       int    `envconfig:"DEFAULT_ROLLING_DAYS" default:"7" validate:"min=1"`
	Timezone          string `envconfig:"TZ" default:"Europe/Moscow"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("config timezone: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
