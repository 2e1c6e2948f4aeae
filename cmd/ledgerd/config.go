package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"ledgerly.dev/ledger/events"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/ledger/kv"
	"ledgerly.dev/ledger/ledger/relational"
)

const (
	DriverBadger = "badger"
	EnvPrefix    = "LEDGERD_"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Yaml configuration reference
type (
	Storage struct {
		// badger, postgres or sqlite
		Driver string `yaml:"driver"`
		// Badger directory. Empty keeps the data in memory
		Path string `yaml:"path,omitempty"`
		// Connection string for postgres and sqlite
		DSN string `yaml:"dsn,omitempty"`
	}
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password,omitempty"`
		DB       int    `yaml:"db,omitempty"`
		Channel  string `yaml:"channel,omitempty"`
	}
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development,omitempty"`
	}
	Config struct {
		ListenAddress string  `yaml:"listen-address"`
		Storage       Storage `yaml:"storage"`
		// Zero disables the periodic sweep
		SweepInterval    time.Duration `yaml:"sweep-interval"`
		SweepConcurrency int           `yaml:"sweep-concurrency,omitempty"`
		ShutdownTimeout  time.Duration `yaml:"shutdown-timeout,omitempty"`
		// Loads the demo merchant on an empty ledger
		Seed        bool     `yaml:"seed,omitempty"`
		CorsOrigins []string `yaml:"cors-origins,omitempty"`
		// Events are only published to redis when an address is set
		Redis Redis `yaml:"redis,omitempty"`
		Log   Log   `yaml:"log"`
	}
)

func DefaultConfig() Config {
	return Config{
		ListenAddress:    ":8080",
		Storage:          Storage{Driver: DriverBadger, Path: "ledger.db"},
		SweepInterval:    time.Minute,
		SweepConcurrency: ledger.DefaultSweepConcurrency,
		ShutdownTimeout:  10 * time.Second,
		Redis:            Redis{Channel: events.DefaultChannel},
		Log:              Log{Level: "info"},
	}
}

// LoadConfig reads the yaml file at path over the defaults, then applies
// LEDGERD_* environment overrides. A missing file leaves the defaults.
func LoadConfig(path string) (cfg Config, err error) {
	cfg = DefaultConfig()

	contents, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		err = yaml.Unmarshal(contents, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	err = cfg.applyEnv()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() (err error) {
	strs := map[string]*string{
		"LISTEN_ADDRESS": &c.ListenAddress,
		"STORAGE_DRIVER": &c.Storage.Driver,
		"STORAGE_PATH":   &c.Storage.Path,
		"STORAGE_DSN":    &c.Storage.DSN,
		"REDIS_ADDRESS":  &c.Redis.Address,
		"REDIS_PASSWORD": &c.Redis.Password,
		"REDIS_CHANNEL":  &c.Redis.Channel,
		"LOG_LEVEL":      &c.Log.Level,
	}
	for key, dst := range strs {
		value, found := os.LookupEnv(EnvPrefix + key)
		if found {
			*dst = value
		}
	}

	value, found := os.LookupEnv(EnvPrefix + "SEED")
	if found {
		c.Seed, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %sSEED: %w", ErrInvalidConfig, EnvPrefix, err)
		}
	}
	value, found = os.LookupEnv(EnvPrefix + "SWEEP_INTERVAL")
	if found {
		c.SweepInterval, err = time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %sSWEEP_INTERVAL: %w", ErrInvalidConfig, EnvPrefix, err)
		}
	}
	value, found = os.LookupEnv(EnvPrefix + "CORS_ORIGINS")
	if found {
		c.CorsOrigins = strings.Split(value, ",")
	}
	return nil
}

func (c *Config) Validate() (err error) {
	if c.ListenAddress == "" {
		return fmt.Errorf("%w: listen-address is required", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverBadger:
	case relational.DriverPostgres, relational.DriverSqlite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for %s", ErrInvalidConfig, c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep-interval must not be negative", ErrInvalidConfig)
	}
	_, err = zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) Logger() (logger *zap.Logger, err error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	config := zap.NewProductionConfig()
	if c.Log.Development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = level
	return config.Build()
}

// OpenStorage opens the configured backend
func (c *Config) OpenStorage(logger *zap.Logger) (storage ledger.Storage, err error) {
	switch c.Storage.Driver {
	case DriverBadger:
		db, err := kv.Open(c.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		return kv.New(kv.Config{DB: db}), nil
	default:
		db, err := relational.Open(relational.Config{
			Driver: c.Storage.Driver,
			DSN:    c.Storage.DSN,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return relational.New(db), nil
	}
}

// RedisClient returns nil when no redis address is configured
func (c *Config) RedisClient() (client *redis.Client) {
	if c.Redis.Address == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}
