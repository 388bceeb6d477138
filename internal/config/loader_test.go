package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "direct", cfg.Delivery.Mode)
	assert.Equal(t, "memory", cfg.Session.Store)
	// Back-to-back messages from the same sender are throttled to one
	// per second out of the box.
	assert.Equal(t, 1, cfg.Guard.MinIntervalSeconds)
	assert.Equal(t, 10, cfg.Guard.DedupeWindowMinutes)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
delivery:
  mode: relay
  relayUrl: https://workflow.example.com/hook
llm:
  apiKey: sk-test
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "relay", cfg.Delivery.Mode)
	assert.Equal(t, "https://workflow.example.com/hook", cfg.Delivery.RelayURL)
	// Untouched sections keep their defaults.
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Guard.DedupeWindowMinutes)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VOXGATE_PORT", "7777")
	t.Setenv("VOXGATE_OPENAI_API_KEY", "sk-env")
	t.Setenv("VOXGATE_DELIVERY_MODE", "RELAY")

	path := writeConfig(t, "server:\n  port: 9090\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "relay", cfg.Delivery.Mode)
}

func TestLoadExpandsSensitiveFields(t *testing.T) {
	t.Setenv("MY_TWILIO_TOKEN", "secret-token")
	path := writeConfig(t, `
delivery:
  twilio:
    authToken: ${MY_TWILIO_TOKEN}
llm:
  apiKey: ${UNSET_VAR_XYZ}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Delivery.Twilio.AuthToken)
	assert.Equal(t, "${UNSET_VAR_XYZ}", cfg.LLM.APIKey, "unset variables stay literal")
}

func TestSaveRawRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxgate.yaml")
	require.NoError(t, SaveRaw(path, map[string]any{
		"server": map[string]any{"port": 1234},
	}))

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	server, ok := raw["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1234, server["port"])
}
