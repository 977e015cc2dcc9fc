package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Ledger modes
const (
	LedgerAccumulate = "accumulate"
	LedgerRecompute  = "recompute"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Session  SessionConfig  `yaml:"session"`
	Lookups  LookupsConfig  `yaml:"lookups"`
	Images   ImagesConfig   `yaml:"images"`
	Ads      AdsConfig      `yaml:"ads"`
	NATS     NATSConfig     `yaml:"nats"`
	Logger   LoggerConfig   `yaml:"logger"`
}

type HTTPConfig struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite3"`
	Path   string `yaml:"path" env:"DB_PATH" env-default:"./ads_manager.db"`
}

type CacheConfig struct {
	Type          string `yaml:"type" env:"CACHE_TYPE" env-default:"redis"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
}

type SessionConfig struct {
	TTL        time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h"`
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE" env-default:"session_id"`
}

type LookupsConfig struct {
	TTL time.Duration `yaml:"ttl" env:"LOOKUPS_TTL" env-default:"10m"`
}

type ImagesConfig struct {
	BaseDir     string        `yaml:"base_dir" env:"IMAGES_BASE_DIR" env-default:"."`
	SearchRoots []string      `yaml:"search_roots" env:"IMAGES_SEARCH_ROOTS" env-separator:","`
	MaxBytes    int64         `yaml:"max_bytes" env:"IMAGES_MAX_BYTES" env-default:"5242880"`
	ResolveTTL  time.Duration `yaml:"resolve_ttl" env:"IMAGES_RESOLVE_TTL" env-default:"5m"`
}

type AdsConfig struct {
	ActiveStatusID    int    `yaml:"active_status_id" env:"ADS_ACTIVE_STATUS_ID" env-default:"1"`
	CompletedStatusID int    `yaml:"completed_status_id" env:"ADS_COMPLETED_STATUS_ID" env-default:"2"`
	LedgerMode        string `yaml:"ledger_mode" env:"ADS_LEDGER_MODE" env-default:"recompute"`
}

type NATSConfig struct {
	URL string `yaml:"url" env:"NATS_URL"`
}

type LoggerConfig struct {
	CallerKey  string `yaml:"caller_key" env:"LOG_CALLER_KEY" env-default:"file"`
	TimeKey    string `yaml:"time_key" env:"LOG_TIME_KEY" env-default:"timestamp"`
	CallerSkip int    `yaml:"caller_skip" env:"LOG_CALLER_SKIP" env-default:"1"`
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Ads.LedgerMode != LedgerAccumulate && c.Ads.LedgerMode != LedgerRecompute {
		return fmt.Errorf("unknown ledger mode %q", c.Ads.LedgerMode)
	}
	if c.Ads.ActiveStatusID == c.Ads.CompletedStatusID {
		return errors.New("active and completed status ids must differ")
	}
	if c.Lookups.TTL <= 0 {
		return errors.New("lookups ttl must be positive")
	}
	return nil
}

// Load reads the yaml file at path, falling back to the environment
// when the file does not exist
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, cfg.Validate()
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, cfg.Validate()
}

// MustLoad loads the config named by CONFIG_PATH (default config.yaml)
func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
