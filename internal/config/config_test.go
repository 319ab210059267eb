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
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PREVIEW_PACE_MS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 200*time.Millisecond, cfg.PreviewPace)
	assert.Equal(t, 30*time.Second, cfg.SimulateTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentbuilder.toml")
	content := `
http_port = 9000
flows_api_base_url = "http://flows.local"
preview_pace_ms = 50
preview_timezone = "UTC"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, "http://flows.local", cfg.FlowsAPIBaseURL)
	assert.Equal(t, 50*time.Millisecond, cfg.PreviewPace)
	assert.Equal(t, "UTC", cfg.PreviewTimezone)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("http_port = ["), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.HTTPPort = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FlowsAPIBaseURL = ""
	assert.Error(t, cfg.Validate())
}
