package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  dsn: postgres://x\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, float64(10), cfg.Server.RateLimitPerSec)
	assert.Equal(t, 5, cfg.Server.RateLimitBurst)
	assert.Equal(t, 30, cfg.Server.CacheTTLSeconds)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0, cfg.Database.MaxOpenConns, "unlimited pool stays unlimited")
	assert.Equal(t, 2, cfg.Database.MaxIdleConns)
	assert.Equal(t, 3*time.Second, cfg.Database.LockTimeout())
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, slog.LevelInfo, cfg.Logging.SlogLevel())
}

func TestLoad_SQLitePinsOneConnection(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  driver: " SQLite "
  dsn: "file:booking.db"
  max_open_conns: 10
  max_idle_conns: 4
`))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 1, cfg.Database.MaxIdleConns)
}

func TestLoad_Values(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  max_open_conns: 20
  lock_timeout_ms: 250
worker_pool:
  size: 4
logging:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.LockTimeout())
	assert.Equal(t, 4, cfg.WorkerPool.Size)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, LoggingConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LoggingConfig{Level: "ERROR"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LoggingConfig{Level: "chatty"}.SlogLevel())
}
