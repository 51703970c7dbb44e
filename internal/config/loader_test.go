package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadHarness_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := config.LoadHarness("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.API.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.API.Backoff)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 800*time.Millisecond, cfg.Thresholds.P95)
	assert.InDelta(t, 0.05, cfg.Thresholds.FailureRate, 1e-9)
	assert.Equal(t, 3, cfg.Load.TopStoriesWeight)
	assert.Equal(t, 1, cfg.Load.ItemWeight)
}

func TestLoad_FileKeepsUnsetDefaultsAndHonoursZero(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	path := writeFile(t, `
api:
  base_url: http://localhost:8081
  retries: 0
  backoff: 300ms
logging:
  level: debug
`)

	cfg, err := config.LoadHarness(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8081", cfg.API.BaseURL)
	assert.Equal(t, 0, cfg.API.Retries)
	assert.Equal(t, 300*time.Millisecond, cfg.API.Backoff)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("HACKERNEWS_BASE_URL", "http://env.example/v0")
	t.Setenv("HN_RETRIES", "2")
	t.Setenv("HN_BACKOFF", "0.3")
	t.Setenv("HN_TIMEOUT", "6s")

	path := writeFile(t, "api:\n  base_url: http://file.example/v0\n  retries: 5\n")

	cfg, err := config.LoadHarness(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.example/v0", cfg.API.BaseURL)
	assert.Equal(t, 2, cfg.API.Retries)
	assert.Equal(t, 300*time.Millisecond, cfg.API.Backoff)
	assert.Equal(t, 6*time.Second, cfg.API.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "harness.env")
	require.NoError(t, os.WriteFile(envPath, []byte("HN_PROBE_WORKERS=7\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)
	t.Cleanup(func() { _ = os.Unsetenv("HN_PROBE_WORKERS") })

	cfg, err := config.LoadHarness("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Probe.Workers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.LoadHarness(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.API.Retries = -1
	cfg.API.BaseURL = "not a url"
	cfg.Load.WaitMax = 100 * time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *config.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 3)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/hnconform.yml")
	assert.Equal(t, "/etc/hnconform.yml", config.GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))
}
