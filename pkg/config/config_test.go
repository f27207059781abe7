package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears variables for the duration of a test. t.Setenv registers
// the restore; the explicit unset makes LookupEnv miss instead of seeing "".
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetenv(t,
		"DB_HOST", "DB_PORT", "DB_NAME", "SERVER_PORT",
		"BENCHMARK_LOCK_TIMEOUT", "BENCHMARK_RETRY_ATTEMPTS",
		"BENCHMARK_RETRY_BACKOFF", "CONFIDENCE_FLOOR", "REDIS_ADDR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "lease_intelligence", cfg.DB.DBName)
	assert.Equal(t, "8084", cfg.Server.Port)

	// benchmark tuning defaults
	assert.Equal(t, 3*time.Second, cfg.Benchmark.LockTimeout)
	assert.Equal(t, 3, cfg.Benchmark.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Benchmark.RetryBackoff)
	assert.Equal(t, 0.70, cfg.Benchmark.ConfidenceFloor)

	// cache disabled unless an address is configured
	assert.Empty(t, cfg.Cache.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("BENCHMARK_LOCK_TIMEOUT", "500ms")
	t.Setenv("BENCHMARK_RETRY_ATTEMPTS", "5")
	t.Setenv("CONFIDENCE_FLOOR", "0.8")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Benchmark.LockTimeout)
	assert.Equal(t, 5, cfg.Benchmark.RetryAttempts)
	assert.Equal(t, 0.8, cfg.Benchmark.ConfidenceFloor)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{
		Host: "h", Port: "5433", User: "u", Password: "p",
		DBName: "d", SSLMode: "disable",
	}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=d sslmode=disable", c.GetDSN())
}
