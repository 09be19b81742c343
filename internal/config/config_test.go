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
	dir := t.TempDir()
	t.Setenv("PARKPOS_CONFIG_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.API.URL)
	assert.Equal(t, "operations", cfg.API.ParamsScope)
	assert.Equal(t, dir, cfg.Storage.Dir)
	assert.Equal(t, filepath.Join(dir, "storage.yaml"), cfg.StoragePath())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.Path())
	assert.Equal(t, 12*time.Hour, cfg.Tab.TTL)
	assert.Equal(t, "parkpos", cfg.Telemetry.ServiceName)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PARKPOS_CONFIG_DIR", dir)

	content := `
api:
  url: https://pos.example.com
  service_code: "100000001"
tab:
  redis_url: redis://localhost:6379/0
  ttl: 30m
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://pos.example.com", cfg.API.URL)
	assert.Equal(t, "100000001", cfg.API.ServiceCode)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Tab.RedisURL)
	assert.Equal(t, 30*time.Minute, cfg.Tab.TTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PARKPOS_CONFIG_DIR", dir)
	t.Setenv("PARKPOS_URL", "http://backend:9000")
	t.Setenv("PARKPOS_SERVICE_CODE", "200000002")
	t.Setenv("PARKPOS_NATS_URL", "nats://localhost:4222")
	t.Setenv("PARKPOS_LOGGING_LEVEL", "error")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.API.URL)
	assert.Equal(t, "200000002", cfg.API.ServiceCode)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Setenv("PARKPOS_CONFIG_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  params_scope: parking\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "parking", cfg.API.ParamsScope)
	assert.Equal(t, path, cfg.Path())
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PARKPOS_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api: [unclosed"), 0o600))

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{API: APIConfig{URL: "http://x"}, Logging: LoggingConfig{Format: "text"}}
	assert.NoError(t, cfg.Validate())

	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg.Logging.Format = "json"
	cfg.API.URL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_TabID(t *testing.T) {
	cfg := &Config{API: APIConfig{URL: "http://x"}, Logging: LoggingConfig{Format: "text"}}
	for _, id := range []string{"", "ppid-4242", "till_03.north"} {
		cfg.Tab.ID = id
		assert.NoError(t, cfg.Validate(), id)
	}
	for _, id := range []string{"tab-*", "tab?", "[ab]", "a:b", "a b"} {
		cfg.Tab.ID = id
		assert.Error(t, cfg.Validate(), id)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("PARKPOS_CONFIG_DIR", "/tmp/parkpos-test")
	t.Setenv("PARKPOS_URL", "http://ignored")

	cfg := Default()
	assert.Equal(t, "http://localhost:8080", cfg.API.URL)
	assert.Equal(t, "/tmp/parkpos-test", cfg.Storage.Dir)
	assert.NoError(t, cfg.Validate())
}
