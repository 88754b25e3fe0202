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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
auth:
  secret: s3cret
  tokenTTL: 2h
feed:
  commentPageSize: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Feed.CommentPageSize)
	assert.Equal(t, 10, cfg.Feed.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: from-file\n")
	t.Setenv("COMMUNITY_PORT", "7070")
	t.Setenv("COMMUNITY_AUTH_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: ["))
		assert.Error(t, err)
	})


	t.Run("zero client timeout", func(t *testing.T) {
		_, err := Load(writeConfig(t, "client:\n  timeout: 0s\n"))
		assert.EqualError(t, err, "config: client.timeout must be positive")
	})

	t.Run("page size above max", func(t *testing.T) {
		_, err := Load(writeConfig(t, "auth:\n  secret: x\nfeed:\n  pageSize: 500\n"))
		assert.Error(t, err)
	})
}

func TestValidateServer(t *testing.T) {
	t.Setenv("COMMUNITY_AUTH_SECRET", "")
	cfg, err := Load(writeConfig(t, "server:\n  port: \"1\"\n"))
	require.NoError(t, err, "clients load without a secret")
	assert.EqualError(t, cfg.ValidateServer(), "config: auth.secret is required")

	cfg.Auth.Secret = "x"
	assert.NoError(t, cfg.ValidateServer())
}
