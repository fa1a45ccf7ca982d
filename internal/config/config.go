package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/nutrilabel/pkg/httpserver"
	"github.com/dmitrymomot/nutrilabel/pkg/pg"
	"github.com/dmitrymomot/nutrilabel/pkg/redis"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	App       App
	HTTP      httpserver.Config
	Postgres  pg.Config
	Redis     redis.Config
	JWT       JWT
	Gateway   Gateway
	Catalog   Catalog
	Lifecycle Lifecycle
	Sweeper   Sweeper
	Mail      Mail
}

type App struct {
	Name     string `env:"APP_NAME" envDefault:"nutrilabel"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`
	// Storage selects the persistence backend: postgres or memory.
	Storage string `env:"APP_STORAGE" envDefault:"postgres"`
}

type JWT struct {
	Secret string        `env:"JWT_SECRET,required"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"nutrilabel"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

type Gateway struct {
	Provider          string        `env:"GATEWAY_PROVIDER" envDefault:"memory"`
	StripeSecretKey   string        `env:"STRIPE_SECRET_KEY"`
	MaxNetworkRetries int64         `env:"STRIPE_MAX_NETWORK_RETRIES" envDefault:"2"`
	CallTimeout       time.Duration `env:"GATEWAY_CALL_TIMEOUT" envDefault:"15s"`
	BreakerFailures   uint32        `env:"GATEWAY_BREAKER_FAILURES" envDefault:"5"`
	BreakerOpenFor    time.Duration `env:"GATEWAY_BREAKER_OPEN_FOR" envDefault:"30s"`
	BreakerInterval   time.Duration `env:"GATEWAY_BREAKER_INTERVAL" envDefault:"60s"`
}

type Catalog struct {
	// Source is yaml (read File) or postgres (File is seeded into the table, then read back).
	Source string `env:"CATALOG_SOURCE" envDefault:"yaml"`
	File   string `env:"CATALOG_FILE" envDefault:"config/plans.yaml"`
}

type Lifecycle struct {
	CancellationGrace time.Duration `env:"CANCELLATION_GRACE" envDefault:"72h"`
}

type Sweeper struct {
	Enabled   bool          `env:"SWEEPER_ENABLED" envDefault:"true"`
	Interval  time.Duration `env:"SWEEPER_INTERVAL" envDefault:"5m"`
	BatchSize int           `env:"SWEEPER_BATCH_SIZE" envDefault:"100"`
	LockTTL   time.Duration `env:"SWEEPER_LOCK_TTL" envDefault:"4m"`
}

type Mail struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string `env:"MAIL_FROM" envDefault:"billing@nutrilabel.local"`
	MessageStream        string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
}

// Load reads optional .env files (missing files are ignored) and parses the
// process environment into Config.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return parse(env.Options{})
}

// LoadFrom parses the given environment only. Used by tests.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.App.Storage {
	case "postgres":
		if c.Postgres.ConnectionString == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("APP_STORAGE must be postgres or memory, got %q", c.App.Storage))
	}
	switch c.Gateway.Provider {
	case "stripe":
		if c.Gateway.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required for the stripe gateway"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("GATEWAY_PROVIDER must be stripe or memory, got %q", c.Gateway.Provider))
	}
	switch c.Catalog.Source {
	case "yaml":
	case "postgres":
		if c.App.Storage != "postgres" {
			errs = append(errs, errors.New("CATALOG_SOURCE=postgres requires postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("CATALOG_SOURCE must be yaml or postgres, got %q", c.Catalog.Source))
	}
	if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.Lifecycle.CancellationGrace < 0 {
		errs = append(errs, errors.New("CANCELLATION_GRACE must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.App.Env == "production" || c.App.Env == "prod"
}
