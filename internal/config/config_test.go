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

	assert.Equal(t, ":7161", cfg.Server.Addr)
	assert.Equal(t, "us-east-1", cfg.Cognito.Region)
	assert.Equal(t, 10*time.Second, cfg.Cognito.Timeout)
	assert.Equal(t, 3*time.Minute, cfg.Cognito.SessionTTL)
	assert.Equal(t, "auth.events", cfg.Events.AuthTopic)
	assert.True(t, cfg.IsDev())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BUSTRACK_COGNITO_CLIENT_ID", "client-from-env")
	t.Setenv("BUSTRACK_COGNITO_TIMEOUT", "3s")
	t.Setenv("BUSTRACK_SERVER_ENV", "prod")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "client-from-env", cfg.Cognito.ClientID)
	assert.Equal(t, 3*time.Second, cfg.Cognito.Timeout)
	assert.False(t, cfg.IsDev())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bustrack.yaml")
	content := `
cognito:
  region: eu-west-1
  user_pool_id: eu-west-1_abc
  client_id: abc123
fleet:
  bus_list_url: https://example.com/GetBus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Cognito.Region)
	assert.Equal(t, "https://example.com/GetBus", cfg.Fleet.BusListURL)
	assert.Equal(t, "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_abc", cfg.Cognito.Issuer())
	assert.Equal(t, "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_abc/.well-known/jwks.json", cfg.Cognito.JWKSURL())
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cognito.client_id is required")
	assert.Contains(t, err.Error(), "cognito.user_pool_id is required")
	assert.NotContains(t, err.Error(), "cognito.region")
}
