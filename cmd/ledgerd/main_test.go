package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"ledgerly.dev/ledger/ledger"
	"ledgerly.dev/ledger/ledger/relational"
)

func Test_LoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		assertions := assert.New(t)

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if !assertions.Nil(err, "failed to load defaults") {
			return
		}
		assertions.Equal(DefaultConfig(), cfg)
	})
	t.Run("File", func(t *testing.T) {
		assertions := assert.New(t)

		path := filepath.Join(t.TempDir(), "config.yaml")
		contents := `
listen-address: "127.0.0.1:9090"
storage:
  driver: sqlite
  dsn: "file:ledger?mode=memory"
sweep-interval: 30s
seed: true
cors-origins: ["http://localhost:5173"]
log:
  level: debug
`
		err := os.WriteFile(path, []byte(contents), 0o600)
		if !assertions.Nil(err, "failed to write config") {
			return
		}

		cfg, err := LoadConfig(path)
		if !assertions.Nil(err, "failed to load config") {
			return
		}
		assertions.Equal("127.0.0.1:9090", cfg.ListenAddress)
		assertions.Equal(relational.DriverSqlite, cfg.Storage.Driver)
		assertions.Equal(30*time.Second, cfg.SweepInterval)
		assertions.True(cfg.Seed)
		assertions.Equal([]string{"http://localhost:5173"}, cfg.CorsOrigins)
		assertions.Equal("debug", cfg.Log.Level)
		assertions.Equal(ledger.DefaultSweepConcurrency, cfg.SweepConcurrency, "defaults kept")
	})
	t.Run("Environment", func(t *testing.T) {
		assertions := assert.New(t)

		t.Setenv("LEDGERD_LISTEN_ADDRESS", "127.0.0.1:7070")
		t.Setenv("LEDGERD_STORAGE_PATH", "")
		t.Setenv("LEDGERD_SEED", "true")
		t.Setenv("LEDGERD_SWEEP_INTERVAL", "5s")
		t.Setenv("LEDGERD_CORS_ORIGINS", "http://a.test,http://b.test")

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if !assertions.Nil(err, "failed to load config") {
			return
		}
		assertions.Equal("127.0.0.1:7070", cfg.ListenAddress)
		assertions.Equal("", cfg.Storage.Path)
		assertions.True(cfg.Seed)
		assertions.Equal(5*time.Second, cfg.SweepInterval)
		assertions.Equal([]string{"http://a.test", "http://b.test"}, cfg.CorsOrigins)
	})
	t.Run("Invalid", func(t *testing.T) {
		type Test struct {
			Name string
			Env  map[string]string
		}
		tests := []Test{
			{Name: "Driver", Env: map[string]string{"LEDGERD_STORAGE_DRIVER": "mongo"}},
			{Name: "Missing DSN", Env: map[string]string{"LEDGERD_STORAGE_DRIVER": "postgres"}},
			{Name: "Seed", Env: map[string]string{"LEDGERD_SEED": "maybe"}},
			{Name: "Interval", Env: map[string]string{"LEDGERD_SWEEP_INTERVAL": "soon"}},
			{Name: "Level", Env: map[string]string{"LEDGERD_LOG_LEVEL": "loud"}},
			{Name: "Listen", Env: map[string]string{"LEDGERD_LISTEN_ADDRESS": ""}},
		}
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				for key, value := range test.Env {
					t.Setenv(key, value)
				}
				_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
				assert.ErrorIs(t, err, ErrInvalidConfig)
			})
		}
	})
}

func Test_Module(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Path = ""
		assert.Nil(t, fx.ValidateApp(Module(cfg)))
	})
	t.Run("Lifecycle", func(t *testing.T) {
		assertions := assert.New(t)

		cfg := DefaultConfig()
		cfg.ListenAddress = "127.0.0.1:0"
		cfg.Storage.Path = ""
		cfg.Seed = true
		cfg.Log.Level = "error"

		var l *ledger.Ledger
		app := fxtest.New(t, Module(cfg), fx.Populate(&l))
		app.RequireStart()
		defer app.RequireStop()

		merchant, err := l.Merchant(context.TODO(), "1")
		if !assertions.Nil(err, "seed not applied") {
			return
		}
		assertions.Equal(ledger.MerchantActive, merchant.Status)
	})
}
