package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wrale/wrale-overlay/internal/woverlay/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "woverlay version dev\n", out)

	out, err = execute(t, "version", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "commit: none")
}

func TestVersion_IgnoresBrokenConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.NoError(t, err)
}

func TestConfigView_Text(t *testing.T) {
	out, err := execute(t, "config", "view")
	require.NoError(t, err)
	assert.Contains(t, out, "URL: ws://127.0.0.1:40001")
	assert.Contains(t, out, "Dwell: 2s")
	assert.Contains(t, out, "Redis: disabled")
}

func TestConfigView_YAMLWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "woverlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
overlay:
  dwell: 3s
events:
  redis:
    addr: localhost:6379
    password: hunter2
`), 0o600))
	t.Setenv("WOVERLAY_MEDIA_AUDIO", "silent")

	out, err := execute(t,
		"--config", path,
		"--server", "ws://10.0.0.5:40001",
		"--log-level", "debug",
		"config", "view", "-o", "yaml",
	)
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ws://10.0.0.5:40001", got.Server.URL)
	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, config.AudioSilent, got.Media.Audio)
	assert.Equal(t, "localhost:6379", got.Events.Redis.Addr)
	assert.Equal(t, "********", got.Events.Redis.Password)
	assert.Contains(t, out, "dwell: 3s")
}

func TestConfigView_UnknownFormat(t *testing.T) {
	_, err := execute(t, "config", "view", "-o", "toml")
	assert.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := execute(t, "--server", "http://127.0.0.1:40001", "config", "view")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server url")
}
