package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SinkKindHTTP     = "http"
	SinkKindFirebase = "firebase"
)

// Config is read from the environment at startup
type Config struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SinkKind    string        `env:"SINK_KIND" envDefault:"http"`
	SinkURL     string        `env:"SINK_URL"`
	SinkTimeout time.Duration `env:"SINK_TIMEOUT" envDefault:"0s"`

	FirebaseServiceAccountKeyPath string `env:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseDatabaseURL           string `env:"FIREBASE_DATABASE_URL"`
	FirebaseSubmissionsPath       string `env:"FIREBASE_SUBMISSIONS_PATH" envDefault:"rsvps"`

	WebAddr           string   `env:"WEB_ADDR"`
	WebAllowedOrigins []string `env:"WEB_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	WebRateLimit      float64  `env:"WEB_RATE_LIMIT" envDefault:"5"`
}

// Load parses the environment into a Config and validates it
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected sink has what it needs
func (c Config) Validate() error {
	switch c.SinkKind {
	case SinkKindHTTP:
		if c.SinkURL == "" {
			return fmt.Errorf("SINK_URL environment variable not set")
		}
	case SinkKindFirebase:
		if c.FirebaseServiceAccountKeyPath == "" {
			return fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_KEY_PATH environment variable not set")
		}
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL environment variable not set")
		}
	default:
		return fmt.Errorf("unsupported SINK_KIND %q", c.SinkKind)
	}
	if c.SinkTimeout < 0 {
		return fmt.Errorf("SINK_TIMEOUT must not be negative")
	}
	if c.WebAddr != "" && c.WebRateLimit <= 0 {
		return fmt.Errorf("WEB_RATE_LIMIT must be positive")
	}
	return nil
}
