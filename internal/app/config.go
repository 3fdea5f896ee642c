package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/resto-client/internal/apiclient"
	"github.com/xenking/resto-client/internal/domain/order"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the complete client configuration, loadable from environment
// variables (RESTO_ prefix), flags, or YAML config files.
type Config struct {
	BaseURL        string        `usage:"Backend base URL (RESTO_BASE_URL or API_BASE_URL)"`
	AuthMode       string        `default:"bearer" usage:"Credential transport: bearer or cookie"`
	GoogleClientID string        `usage:"Google OAuth client id sent with Google credentials"`
	Timeout        time.Duration `default:"15s" usage:"Per-request timeout"`
	AddonShape     string        `default:"price" usage:"Addon map values in order payloads: price or count"`
	Storage        StorageConfig
}

// StorageConfig selects where client state (session, cart, order id) is kept.
type StorageConfig struct {
	Driver      string `default:"sqlite" usage:"Client state backend: sqlite, memory, postgres or redis"`
	Path        string `usage:"SQLite file for the sqlite driver (default <user config dir>/resto/state.db)"`
	DatabaseURL string `usage:"PostgreSQL connection URL for the postgres driver"`
	RedisURL    string `usage:"Redis URL for the redis driver"`
	Namespace   string `default:"default" usage:"Key namespace, one per profile"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:          "RESTO",
		SkipFlags:          true,
		AllowUnknownFields: true,
		Files:              configFiles(),
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFiles() []string {
	files := []string{"resto.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, "resto", "config.yaml"))
	}
	return files
}

// applyPlatformDefaults maps the conventional API_BASE_URL and DATABASE_URL
// variables onto the RESTO_-prefixed configuration and places the SQLite
// state file in the user config directory.
func (c *Config) applyPlatformDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv("API_BASE_URL")
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.Path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.Storage.Path = filepath.Join(dir, "resto", "state.db")
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required: set RESTO_BASE_URL or API_BASE_URL")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.Errorf("base URL %q must be http(s)", c.BaseURL)
	}
	if err := apiclient.Mode(c.AuthMode).Validate(); err != nil {
		return err
	}
	if err := order.AddonShape(c.AddonShape).Validate(); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return errors.New("sqlite storage requires RESTO_STORAGE_PATH")
		}
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("postgres storage requires RESTO_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis storage requires RESTO_STORAGE_REDIS_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Namespace == "" {
		return errors.New("storage namespace must not be empty")
	}
	return nil
}
