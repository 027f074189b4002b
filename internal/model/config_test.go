package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Inbox.PollIntervalSec)
	assert.Equal(t, 50, cfg.Inbox.PageSize)
	assert.Equal(t, 30, cfg.API.TimeoutSec)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Principal.Roles)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://fleet.example.com/api/
inbox:
  poll_interval_sec: 10
principal:
  name: Awa
  roles: [Chauffeur, Admin]
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://fleet.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.Inbox.PollIntervalSec)
	assert.Equal(t, 50, cfg.Inbox.PageSize)
	assert.Equal(t, Principal{Name: "Awa", Roles: []string{"Chauffeur", "Admin"}}, cfg.Operator())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLEETCONSOLE_API_BASE_URL", "http://localhost:8000/api")
	t.Setenv("FLEETCONSOLE_PRINCIPAL_ROLES", "Gestionnaire carburant")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, []string{"Gestionnaire carburant"}, cfg.Principal.Roles)
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.API.BaseURL = "https://fleet.example.com/api"
	cfg.Principal = PrincipalConfig{Name: "Ibrahim", Roles: []string{"Admin"}}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API.BaseURL, loaded.API.BaseURL)
	assert.Equal(t, cfg.Principal, loaded.Principal)
	assert.Equal(t, cfg.Inbox, loaded.Inbox)
}
