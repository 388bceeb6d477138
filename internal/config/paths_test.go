package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsHonorsHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("VOXGATE_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)

	require.NoError(t, p.EnsureDirs())
	assert.DirExists(t, p.Data)
	assert.DirExists(t, p.Logs)
}

func TestParseConfigPath(t *testing.T) {
	parts, err := ParseConfigPath("delivery.twilio.fromNumber")
	require.NoError(t, err)
	assert.Equal(t, []string{"delivery", "twilio", "fromNumber"}, parts)

	_, err = ParseConfigPath("")
	assert.Error(t, err)
	_, err = ParseConfigPath("server..port")
	assert.Error(t, err)
	_, err = ParseConfigPath("__proto__.x")
	assert.Error(t, err)
}

func TestValueAtPathHelpers(t *testing.T) {
	root := map[string]any{}
	SetValueAtPath(root, []string{"server", "port"}, 9090)

	val, ok := GetValueAtPath(root, []string{"server", "port"})
	require.True(t, ok)
	assert.Equal(t, 9090, val)

	_, ok = GetValueAtPath(root, []string{"server", "host"})
	assert.False(t, ok)

	assert.True(t, UnsetValueAtPath(root, []string{"server", "port"}))
	assert.False(t, UnsetValueAtPath(root, []string{"server", "port"}))
}
