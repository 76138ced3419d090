package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "auth-service", cfg.Auth.ServiceName)
	assert.Equal(t, 300*time.Millisecond, cfg.FilterDebounce)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10*time.Minute, cfg.PresignTTL)
	assert.True(t, cfg.IsDev())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
app:
  env: prod
store:
  driver: memory
auth:
  base_url: http://auth.local:8081
  timeout_seconds: 4
kafka:
  brokers: ["k1:9092", "k2:9092"]
ui:
  filter_debounce_ms: 150
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("DMCLIENT_AWS_BUCKET", "chat-media")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "http://auth.local:8081", cfg.Auth.BaseURL)
	assert.Equal(t, 4*time.Second, cfg.AuthTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 150*time.Millisecond, cfg.FilterDebounce)
	assert.Equal(t, "chat-media", cfg.AWS.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
