package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DataDir string `envconfig:"LEDGER_DATA_DIR" default:"./data"`

	// DeviceID identifies this installation in push requests.
	DeviceID string `envconfig:"LEDGER_DEVICE_ID" default:"default"`

	Remote struct {
		URL     string        `envconfig:"LEDGER_REMOTE_URL" default:"http://localhost:8080"`
		Token   string        `envconfig:"LEDGER_REMOTE_TOKEN"`
		Timeout time.Duration `envconfig:"LEDGER_REMOTE_TIMEOUT" default:"30s"`
	}

	Sync struct {
		BatchSize     int           `envconfig:"LEDGER_SYNC_BATCH_SIZE" default:"10"`
		Interval      time.Duration `envconfig:"LEDGER_SYNC_INTERVAL" default:"15m"`
		ProbeInterval time.Duration `envconfig:"LEDGER_PROBE_INTERVAL" default:"30s"`
		Retention     time.Duration `envconfig:"LEDGER_QUEUE_RETENTION" default:"720h"`
	}

	Log struct {
		Level  string `envconfig:"LEDGER_LOG_LEVEL" default:"info"`
		Format string `envconfig:"LEDGER_LOG_FORMAT" default:"json"`
	}

	Feed struct {
		Addr           string   `envconfig:"LEDGER_FEED_ADDR" default:"localhost:8090"`
		AllowedOrigins []string `envconfig:"LEDGER_FEED_ORIGINS" default:"http://localhost:3000"`
	}

	Authority struct {
		Addr      string `envconfig:"AUTHORITY_ADDR" default:":8080"`
		JWTSecret string `envconfig:"AUTHORITY_JWT_SECRET"`
		PageSize  int    `envconfig:"AUTHORITY_PAGE_SIZE" default:"500"`
	}
}

// Load reads env files (./.env when none are named) and then the process
// environment. Variables already set in the environment take precedence over
// the files. A missing ./.env is not an error; a missing named file is.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("LEDGER_SYNC_BATCH_SIZE must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("LEDGER_SYNC_INTERVAL must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.ProbeInterval <= 0 {
		return fmt.Errorf("LEDGER_PROBE_INTERVAL must be positive, got %s", c.Sync.ProbeInterval)
	}
	if c.Authority.PageSize <= 0 {
		return fmt.Errorf("AUTHORITY_PAGE_SIZE must be positive, got %d", c.Authority.PageSize)
	}
	if c.DataDir == "" {
		return errors.New("LEDGER_DATA_DIR must not be empty")
	}
	return nil
}
