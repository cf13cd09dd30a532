package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config is the full process configuration, read from ALPINE_* variables.
type Config struct {
	Server   Server   `envPrefix:"ALPINE_"`
	Log      Log      `envPrefix:"ALPINE_LOG_"`
	Storage  Storage  `envPrefix:"ALPINE_STORAGE_"`
	Redis    Redis    `envPrefix:"ALPINE_REDIS_"`
	Kafka    Kafka    `envPrefix:"ALPINE_KAFKA_"`
	Auth     Auth     `envPrefix:"ALPINE_JWT_"`
	Donation Donation `envPrefix:"ALPINE_DONATION_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	AddressPrefix   string        `env:"ADDRESS_PREFIX" envDefault:"juno"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Storage selects the registry and ledger backend.
type Storage struct {
	Backend         string        `env:"BACKEND" envDefault:"memory"`
	BoltPath        string        `env:"BOLT_PATH" envDefault:"alpine.db"`
	PostgresURL     string        `env:"POSTGRES_URL"`
	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// Redis fronts address lookups. An empty URL disables the cache.
type Redis struct {
	URL          string        `env:"URL"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka carries transfer events. No brokers means effects are only logged.
type Kafka struct {
	Brokers           []string      `env:"BROKERS" envSeparator:","`
	Topic             string        `env:"TOPIC" envDefault:"alpine.transfers"`
	ClientID          string        `env:"CLIENT_ID" envDefault:"alpine"`
	Partitions        int32         `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16         `env:"REPLICATION_FACTOR" envDefault:"1"`
	ProduceTimeout    time.Duration `env:"PRODUCE_TIMEOUT" envDefault:"10s"`
}

func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

type Auth struct {
	SigningKey string `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"ISSUER" envDefault:"alpine"`
	Audience   string `env:"AUDIENCE" envDefault:"alpine-api"`
}

// Donation holds the transfer policy settings.
type Donation struct {
	FeeSplit         bool            `env:"FEE_SPLIT" envDefault:"true"`
	CommissionRate   decimal.Decimal `env:"COMMISSION_RATE" envDefault:"0.03"`
	PlatformAddress  string          `env:"PLATFORM_ADDRESS"`
	MaxMessageLength int             `env:"MAX_MESSAGE_LENGTH" envDefault:"250"`
}

// FromEnv parses the environment and validates the result.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the process cannot serve.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendMemory:
		if c.Kafka.Enabled() {
			errs = append(errs, errors.New("kafka hand-off requires a durable storage backend"))
		}
	case BackendBolt:
		if c.Storage.BoltPath == "" {
			errs = append(errs, errors.New("bolt backend requires ALPINE_STORAGE_BOLT_PATH"))
		}
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("postgres backend requires ALPINE_STORAGE_POSTGRES_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("jwt signing key is required"))
	}
	if c.Server.AddressPrefix == "" {
		errs = append(errs, errors.New("address prefix is required"))
	}
	if c.Donation.FeeSplit && c.Donation.PlatformAddress == "" {
		errs = append(errs, errors.New("fee split requires ALPINE_DONATION_PLATFORM_ADDRESS"))
	}
	if c.Donation.MaxMessageLength < 0 {
		errs = append(errs, errors.New("max message length cannot be negative"))
	}
	return errors.Join(errs...)
}
