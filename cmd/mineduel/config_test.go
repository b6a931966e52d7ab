package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  url = "http://example.com:5000"
}
ui {
  log_level = "debug"
}
`), 0o644))

	cfg, err := loadClientConfig(path, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:5000", cfg.Server.URL)
	assert.Equal(t, "debug", cfg.UI.LogLevel)

	cfg, err = loadClientConfig(path, "ws://localhost:6000", "error", "other.log")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:6000", cfg.Server.URL)
	assert.Equal(t, "error", cfg.UI.LogLevel)
	assert.Equal(t, "other.log", cfg.UI.LogFile)

	_, err = loadClientConfig(path, "ftp://nope", "", "")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := setupLogger("warn", "", &buf)
	require.NoError(t, err)
	defer closeLog()

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	file := filepath.Join(t.TempDir(), "server.log")
	logger, closeFile, err := setupLogger("info", file, &buf)
	require.NoError(t, err)
	logger.Info("to file")
	closeFile()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	_, _, err = setupLogger("loud", "", &buf)
	assert.Error(t, err)
}

func TestCLIParses(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": version})
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"server", "--port", "6000", "--seed", "42"})
	require.NoError(t, err)
	assert.Equal(t, "server", ctx.Command())
	assert.Equal(t, 6000, cli.Server.Port)
	assert.Equal(t, int64(42), cli.Server.Seed)
	assert.Equal(t, "mineduel-server.hcl", cli.Server.Config)

	ctx, err = parser.Parse([]string{"bot", "--interval", "50ms", "-s", "http://localhost:5001"})
	require.NoError(t, err)
	assert.Equal(t, "bot", ctx.Command())
	assert.Equal(t, "http://localhost:5001", cli.Bot.Server)
	assert.Equal(t, "50ms", cli.Bot.Interval.String())
}
