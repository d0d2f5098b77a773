package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

var DefaultEnvConfig *envConfig

type envConfig struct {
	APP_PORT             string   `env:"APP_PORT" envDefault:"8080"`
	CORS_ALLOWED_ORIGINS []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	PUBLIC_BASE_URL      string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// database config
	DB_HOST              string        `env:"DB_HOST" envDefault:"localhost"`
	DB_PORT              int           `env:"DB_PORT" envDefault:"5432"`
	DB_USER              string        `env:"DB_USER" envDefault:"postgres"`
	DB_PASSWORD          string        `env:"DB_PASSWORD" envDefault:"postgres"`
	DB_NAME              string        `env:"DB_NAME" envDefault:"employees"`
	DB_SSL_MODE          string        `env:"DB_SSL_MODE" envDefault:"disable"`
	DB_CONN_MAX_LIFETIME time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"20m"`
	DB_MAX_IDLE_CONNS    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DB_MAX_OPEN_CONNS    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DB_AUTO_MIGRATE      bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// logger config
	LOG_FILE_PATH string `env:"LOG_FILE_PATH"`
	LOG_LEVEL     string `env:"LOG_LEVEL" envDefault:"info"`

	// external sources
	CVPARTNER_BASE_URL       string        `env:"CVPARTNER_BASE_URL" envDefault:"https://api.cvpartner.com"`
	CVPARTNER_TOKEN          string        `env:"CVPARTNER_TOKEN"`
	VIBES_BASE_URL           string        `env:"VIBES_BASE_URL"`
	VIBES_TOKEN_URL          string        `env:"VIBES_TOKEN_URL"`
	VIBES_CLIENT_ID          string        `env:"VIBES_CLIENT_ID"`
	VIBES_CLIENT_SECRET      string        `env:"VIBES_CLIENT_SECRET"`
	VIBES_SCOPE              string        `env:"VIBES_SCOPE"`
	SOURCE_HTTP_TIMEOUT      time.Duration `env:"SOURCE_HTTP_TIMEOUT" envDefault:"30s"`
	SOURCE_HTTP_MAX_ATTEMPTS int           `env:"SOURCE_HTTP_MAX_ATTEMPTS" envDefault:"3"`

	// sync config
	SYNC_ENABLED     bool   `env:"SYNC_ENABLED" envDefault:"true"`
	SYNC_AT          string `env:"SYNC_AT" envDefault:"04:00"`
	SYNC_WORKERS     int    `env:"SYNC_WORKERS" envDefault:"4"`
	SYNC_CONFIG_PATH string `env:"SYNC_CONFIG_PATH"`

	// image store
	IMAGE_DIR          string `env:"IMAGE_DIR" envDefault:"./data/images"`
	IMAGE_FORCE_UPLOAD bool   `env:"IMAGE_FORCE_UPLOAD" envDefault:"false"`

	// optional integrations, disabled when empty
	ELASTIC_URL   string        `env:"ELASTIC_URL"`
	ELASTIC_INDEX string        `env:"ELASTIC_INDEX" envDefault:"employees"`
	REDIS_URL     string        `env:"REDIS_URL"`
	CACHE_TTL     time.Duration `env:"CACHE_TTL" envDefault:"60s"`
}

// LoadEnvConfig reads the given .env files (".env" when none are given) and
// parses the process environment into DefaultEnvConfig. Missing files are
// skipped so the service can run on plain environment variables.
func LoadEnvConfig(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &envConfig{}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse env config: %w", err)
	}
	DefaultEnvConfig = cfg
	return nil
}
