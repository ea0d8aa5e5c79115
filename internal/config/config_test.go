package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericselin/outputcache"
	cachetime "github.com/ericselin/outputcache/pkg/cache-time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.CacheStatus)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OUTPUTCACHE_STORE", "redis")
	t.Setenv("OUTPUTCACHE_REDIS_ADDR", "cache:6379")
	t.Setenv("OUTPUTCACHE_SWEEP_INTERVAL", "30s")
	t.Setenv("OUTPUTCACHE_CACHE_STATUS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.CacheStatus)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		t.Setenv("OUTPUTCACHE_STORE", "disk")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("port", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")
		_, err := Load()
		assert.Error(t, err)
	})
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o600))
	return filename
}

func TestLoadPolicies(t *testing.T) {
	policies, err := LoadPolicies(writeFile(t, `
teams:
  clientTimeSpan: 50s
  serverTimeSpan: 50s
team:
  until:
    kind: fixed
    year: 2030
    month: 7
    day: 20
`))
	require.NoError(t, err)

	assert.Equal(t, outputcache.For(50*time.Second, 50*time.Second), policies.Get("teams", outputcache.Policy{}))
	assert.Equal(t, cachetime.KindFixed, policies.Get("team", outputcache.Policy{}).Until.Kind)
	fallback := outputcache.UntilToday(23, 55, 0)
	assert.Equal(t, fallback, policies.Get("missing", fallback))
}

func TestLoadPoliciesRejectsInvalid(t *testing.T) {
	_, err := LoadPolicies(writeFile(t, `
teams:
  until:
    kind: day-of-month
    day: 32
`))
	assert.ErrorIs(t, err, cachetime.ErrInvalidSchedule)

	_, err = LoadPolicies(writeFile(t, "teams: [not, a, policy]"))
	assert.Error(t, err)

	_, err = LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
