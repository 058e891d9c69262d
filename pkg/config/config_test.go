package config

import (
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

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "http://localhost:3001/api", c.API.BaseURL)
	assert.Equal(t, 15*time.Second, c.Polling.Quotes)
	assert.Equal(t, "file", c.Session.Backend)
	assert.Equal(t, "unavailable", c.Polling.PricePolicy)
	assert.Equal(t, "none", c.Sink.Type)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://whales.example/api
  admin_emails: [boss@x.io]
polling:
  quotes: 5s
  price_policy: cost
session:
  backend: memory
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://whales.example/api", c.API.BaseURL)
	assert.Equal(t, []string{"boss@x.io"}, c.API.AdminEmails)
	assert.Equal(t, 5*time.Second, c.Polling.Quotes)
	assert.Equal(t, 30*time.Second, c.Polling.Watchlist, "untouched fields keep defaults")
	assert.Equal(t, "cost", c.Polling.PricePolicy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"relative url":   "api:\n  base_url: /api\n",
		"backend":        "session:\n  backend: sqlite\n",
		"zero interval":  "polling:\n  alerts: 0s\n",
		"price policy":   "polling:\n  price_policy: last\n",
		"kafka brokers":  "sink:\n  type: kafka\n",
		"unknown sink":   "sink:\n  type: s3\n",
		"negative rate":  "api:\n  rate_limit: -1\n",
		"malformed yaml": "api: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "api:\n  email: yaml@x.io\n")

	t.Setenv("WW_API_EMAIL", "env@x.io")
	t.Setenv("WW_API_PASSWORD", "hunter22")
	t.Setenv("WW_SINK_TYPE", "kafka")
	t.Setenv("WW_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WW_PORT", "9090")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env@x.io", c.API.Email)
	assert.Equal(t, "hunter22", c.API.Password)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Sink.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestLoadWithEnv_NoFile(t *testing.T) {
	chdir(t, t.TempDir())
	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
}

func TestLoadWithEnv_EnvCompletesYAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "sink:\n  type: kafka\n")

	_, err := Load(path)
	require.Error(t, err, "the file alone lacks brokers")

	t.Setenv("WW_KAFKA_BROKERS", "localhost:9092")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "kafka", c.Sink.Type)
	assert.Equal(t, []string{"localhost:9092"}, c.Sink.Kafka.Brokers)
}

func TestLoadWithEnv_ValidatesAfterOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "server:\n  port: 8081\n")

	t.Setenv("WW_SESSION_BACKEND", "sqlite")
	_, err := LoadWithEnv(path)
	assert.ErrorContains(t, err, "session.backend")
}
