// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable. Defaults are production values; a local
// .env overrides them.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL"` // empty disables link caching

	BaseURL     string `envconfig:"BASE_URL" default:"https://www.redscores.com"`
	ScheduleURL string `envconfig:"SCHEDULE_URL" default:"https://www.redscores.com/amanha"`

	AllowlistFile string `envconfig:"ALLOWLIST_FILE"` // empty uses the built-in list
	AuditDir      string `envconfig:"AUDIT_DIR" default:"audit"`
	ExportDir     string `envconfig:"EXPORT_DIR" default:"exports"`

	HistoryCap       int           `envconfig:"HISTORY_CAP" default:"50"`
	ResolverWorkers  int           `envconfig:"RESOLVER_WORKERS" default:"6"`
	ResolverRetries  int           `envconfig:"RESOLVER_RETRIES" default:"3"`
	ResolverDelay    time.Duration `envconfig:"RESOLVER_DELAY" default:"2s"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	NavTimeout       time.Duration `envconfig:"NAV_TIMEOUT" default:"30s"`
	WaitTimeout      time.Duration `envconfig:"WAIT_TIMEOUT" default:"10s"`
	LoadMoreTimeout  time.Duration `envconfig:"LOAD_MORE_TIMEOUT" default:"5s"`

	Headless bool `envconfig:"HEADLESS" default:"true"`

	StatusAddr   string        `envconfig:"STATUS_ADDR" default:":8080"`
	CollectCron  string        `envconfig:"COLLECT_CRON" default:"0 2 * * *"`
	RunOnStart   bool          `envconfig:"RUN_ON_START" default:"false"`
	LinkCacheTTL time.Duration `envconfig:"LINK_CACHE_TTL" default:"168h"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the environment, after sourcing .env when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	return &cfg, nil
}
