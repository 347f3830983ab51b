package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, fromFile, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.False(t, fromFile, "a missing file must fall back to defaults")
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ".", cfg.Server.StaticDir)
	assert.False(t, cfg.Server.HTTPS.Enabled)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {
			"host": "127.0.0.1",
			"port": 8443,
			"staticDir": "public",
			"https": {
				"enabled": true,
				"certFile": "cert.pem",
				"keyFile": "key.pem"
			}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, fromFile, err := Load(path)
	require.NoError(t, err)

	assert.True(t, fromFile)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "public", cfg.Server.StaticDir)
	assert.True(t, cfg.Server.HTTPS.Enabled)
	assert.Equal(t, "cert.pem", cfg.Server.HTTPS.CertFile)
	assert.Equal(t, "key.pem", cfg.Server.HTTPS.KeyFile)
	assert.Equal(t, "127.0.0.1:8443", cfg.Server.Addr())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":9000}}`), 0o644))

	cfg, fromFile, err := Load(path)
	require.NoError(t, err)

	assert.True(t, fromFile)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset fields must keep their defaults")
	assert.Equal(t, ".", cfg.Server.StaticDir)
}
