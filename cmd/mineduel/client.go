package main

import (
	"context"
	"fmt"
	"io"

	"github.com/lox/mineduel/internal/client"
	"github.com/lox/mineduel/internal/tui"
)

// ClientCmd plays a match in the terminal.
type ClientCmd struct {
	Config   string `short:"c" default:"mineduel-client.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" help:"Server URL to connect to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	NoMouse  bool   `help:"Disable mouse input"`
}

func (c *ClientCmd) Run() error {
	cfg, err := loadClientConfig(c.Config, c.Server, c.LogLevel, c.LogFile)
	if err != nil {
		return err
	}
	if c.NoMouse {
		mouse := false
		cfg.UI.Mouse = &mouse
	}

	// The terminal belongs to the UI, so logs always go to a file.
	logger, closeLog, err := setupLogger(cfg.UI.LogLevel, cfg.UI.LogFile, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("Starting Mine Duel client", "server", cfg.Server.URL, "config", c.Config)

	ctx, stop := signalContext(logger)
	defer stop()

	wsClient := client.NewClient(cfg.Server.URL, logger)
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := wsClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = wsClient.Close() }()

	return tui.Run(ctx, wsClient, logger, tui.Options{Mouse: cfg.MouseEnabled()})
}

// loadClientConfig loads the client config and applies flag overrides.
func loadClientConfig(path, serverURL, logLevel, logFile string) (*client.Config, error) {
	cfg, err := client.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if logLevel != "" {
		cfg.UI.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.UI.LogFile = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
