package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	APIBaseURL    string `env:"APPCORE_API_URL,  default=http://localhost:8080"`
	Env           string `env:"APPCORE_ENV,      default=development"`
	LogLevel      string `env:"APPCORE_LOG_LEVEL, default=info"`
	DefaultLocale string `env:"APPCORE_LOCALE,   default=en"`

	// StateDir is where durable client state (session user, preferences)
	// is written. Empty means a per-user default, see StatePath.
	StateDir string `env:"APPCORE_STATE_DIR"`

	Cache CacheConfig
	Redis RedisConfig
}

type CacheConfig struct {
	// StaleAfter is how long a fetched entry is served without refetching.
	StaleAfter time.Duration `env:"APPCORE_CACHE_STALE_AFTER, default=5m"`
	// GCAfter is how long an untouched entry survives before eviction.
	GCAfter time.Duration `env:"APPCORE_CACHE_GC_AFTER,    default=30m"`
	// ReadRetries bounds transparent retries of failed read fetches.
	ReadRetries int `env:"APPCORE_CACHE_READ_RETRIES, default=2"`
}

// RedisConfig is only honoured when Addr is set; shared/kiosk deployments
// point it at a redis instance instead of the local state directory.
type RedisConfig struct {
	Addr string `env:"APPCORE_REDIS_ADDR"`
	DB   int    `env:"APPCORE_REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}

// StatePath resolves the effective state directory, falling back to the
// platform per-user config dir when none was configured.
func (c *Config) StatePath() (string, error) {
	if c.StateDir != "" {
		return c.StateDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve state dir: %w", err)
	}
	return filepath.Join(base, "appcore"), nil
}
