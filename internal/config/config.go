package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Analysis service credentials and tuning. A missing API key is a
	// startup-time fatal error, never a per-call one.
	AnalysisAPIKey  string        `env:"ANALYSIS_API_KEY,required"`
	AnalysisBaseURL string        `env:"ANALYSIS_BASE_URL" envDefault:"https://api.assemblyai.com/v2"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	PollTimeout     time.Duration `env:"POLL_TIMEOUT" envDefault:"30m"`
	PollMaxFailures int           `env:"POLL_MAX_FAILURES" envDefault:"5"`

	// Optional segment persistence. Empty disables the database.
	DatabaseURL string `env:"DATABASE_URL"`

	// Optional drop-directory ingest. Empty disables the watcher.
	WatchDir string `env:"WATCH_DIR"`

	// Optional raw transcript archive: "", "local", or "s3".
	ArchiveBackend string `env:"ARCHIVE_BACKEND"`
	ArchiveDir     string `env:"ARCHIVE_DIR" envDefault:"./archive"`
	S3             S3Config

	// Optional MQTT completion events. Empty broker URL disables them.
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"audiosift"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"audiosift/analyses"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	HTTPAddr    string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	// The analyze endpoint blocks for the full polling window, so the
	// write timeout must exceed POLL_TIMEOUT.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"35m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the S3-compatible transcript archive backend.
type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"S3_BUCKET"`
	Prefix    string `env:"S3_PREFIX"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	APIKey   string
	WatchDir string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// The API key override must be visible to the required check.
	if overrides.APIKey != "" {
		os.Setenv("ANALYSIS_API_KEY", overrides.APIKey)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}

	return cfg, nil
}
