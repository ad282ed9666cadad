package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsbet/internal/config"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Setenv("SPORTSBET_CONFIG", path)
}

func TestLoadDefaults(t *testing.T) {
	withConfigFile(t, "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Wizard.FetchWorkers)
	assert.Equal(t, "https://www.football-data.co.uk", cfg.DataLoader.BaseURL)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	withConfigFile(t, `
server:
  port: 9999
wizard:
  fetch_workers: 8
dataloader:
  base_url: http://archive.local
`)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Wizard.FetchWorkers)
	assert.Equal(t, "http://archive.local", cfg.DataLoader.BaseURL)
}

func TestEnvOverridesFile(t *testing.T) {
	withConfigFile(t, "server:\n  port: 9999\n")
	t.Setenv("SPORTSBET_SERVER_PORT", "7070")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"SPORTSBET_SERVER_PORT": "70000"}},
		{"zero fetch workers", map[string]string{"SPORTSBET_WIZARD_FETCH_WORKERS": "0"}},
		{"empty base url", map[string]string{"SPORTSBET_DATALOADER_BASE_URL": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfigFile(t, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
