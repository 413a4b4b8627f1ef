package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.DiscordToken)
	assert.Equal(t, "groovebox.db", cfg.StoragePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, 32, cfg.RegistryShards)
	assert.Equal(t, 8, cfg.DispatchWorkers)
	assert.Equal(t, 3, cfg.ResolveAttempts)
	assert.Equal(t, 5.0, cfg.ResolveRPS)
	assert.True(t, cfg.InitSlashCommands)
}

func TestParse_MissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Parse()
	assert.Error(t, err)
}

func TestParse_RejectsBadNumbers(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISPATCH_WORKERS", "0")

	_, err := Parse()
	assert.ErrorContains(t, err, "DISPATCH_WORKERS")
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("LOG_LEVEL", "") // restored after the test
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISCORD_TOKEN=from-file\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DiscordToken, "process environment wins")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
