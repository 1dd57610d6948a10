package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration read from SCALEDSPACE_* variables.
type Config struct {
	DataDir     string        `env:"SCALEDSPACE_DATA_DIR"     envDefault:".scaledspace"`
	ReadOnly    bool          `env:"SCALEDSPACE_READ_ONLY"`
	DevSafety   bool          `env:"SCALEDSPACE_DEV_SAFETY"   envDefault:"true"`
	MaxSize     int64         `env:"SCALEDSPACE_MAX_SIZE"`
	LockTimeout time.Duration `env:"SCALEDSPACE_LOCK_TIMEOUT" envDefault:"1s"`
	Verbose     bool          `env:"SCALEDSPACE_VERBOSE"`

	Addr     string `env:"SCALEDSPACE_ADDR"     envDefault:"127.0.0.1:8080"`
	Upstream string `env:"SCALEDSPACE_UPSTREAM"`
	Assets   string `env:"SCALEDSPACE_ASSETS"   envDefault:"."`
	Manifest string `env:"SCALEDSPACE_MANIFEST" envDefault:"scaledspace.yaml"`

	NotifyInterval time.Duration `env:"SCALEDSPACE_NOTIFY_INTERVAL" envDefault:"1m"`
	NotifyWindow   time.Duration `env:"SCALEDSPACE_NOTIFY_WINDOW"   envDefault:"1m"`
}

// LoadConfig reads the optional .env files, then the environment.
// Variables already set in the environment win over .env entries.
func LoadConfig(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, name := range dotenv {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", name, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Options converts the storage settings to functional options.
func (c Config) Options() []Option {
	return []Option{
		WithReadOnly(c.ReadOnly),
		WithDevSafety(c.DevSafety),
		WithMaxSize(c.MaxSize),
		WithTimeout(c.LockTimeout),
	}
}
