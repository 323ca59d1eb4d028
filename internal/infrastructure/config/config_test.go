package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "setoff-service", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "setoff", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Setoff.UsageRetryMaxElapsed)
	assert.Equal(t, "SO", cfg.Setoff.CodePrefix)
	assert.Equal(t, "setoff-service", cfg.Telemetry.ServiceName)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SETOFF_APP_PORT", "9090")
	t.Setenv("SETOFF_DATABASE_HOST", "db.internal")
	t.Setenv("SETOFF_DATABASE_DRIVER", "sqlite")
	t.Setenv("SETOFF_SETOFF_CODE_PREFIX", "RC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "RC", cfg.Setoff.CodePrefix)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "setoff.toml")
	content := `
[app]
name = "setoff-test"

[outbox]
batch_size = 10
poll_interval = "250ms"

[storage]
bucket = "archive"
access_key = "ak"
secret_key = "sk"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "setoff-test", cfg.App.Name)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.True(t, cfg.Storage.Enabled())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.validate())
	})

	t.Run("idle exceeds open", func(t *testing.T) {
		cfg := base()
		cfg.Database.MaxIdleConns = 100
		assert.Error(t, cfg.validate())
	})

	t.Run("storage bucket without credentials", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Bucket = "b"
		assert.Error(t, cfg.validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		assert.ErrorContains(t, cfg.validate(), "jwt.secret")

		cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
		assert.ErrorContains(t, cfg.validate(), "database.password")

		cfg.Database.Password = "pw"
		cfg.Database.SSLMode = "require"
		assert.NoError(t, cfg.validate())

		cfg.JWT.Disabled = true
		assert.ErrorContains(t, cfg.validate(), "jwt.disabled")
	})

	t.Run("sampling ratio bounds", func(t *testing.T) {
		cfg := base()
		cfg.Telemetry.SamplingRatio = 1.5
		assert.Error(t, cfg.validate())
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p@ss", DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@h:5433/db?sslmode=disable", d.DSN())
}
