package main

import (
	"fmt"
	"os"

	"github.com/lox/mineduel/internal/history"
	"github.com/lox/mineduel/internal/server"
	"github.com/lox/mineduel/internal/session"
)

// ServerCmd runs the match server. Flags override the config file.
type ServerCmd struct {
	Config   string `short:"c" default:"mineduel-server.hcl" help:"Path to HCL configuration file"`
	Address  string `short:"a" help:"Address to bind to (overrides config)"`
	Port     int    `short:"p" help:"Port to listen on (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	History  string `help:"Match history file (overrides config)"`
	Seed     int64  `help:"Use a fixed board seed for every match (1-1000000)"`
	Pretty   bool   `help:"Print a summary of every match to stdout"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	if c.Address != "" {
		cfg.Server.Address = c.Address
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.Server.LogFile = c.LogFile
	}
	if c.History != "" {
		cfg.History.File = c.History
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.Seed < 0 || c.Seed > session.MaxSeed {
		return fmt.Errorf("seed must be between 1 and %d", session.MaxSeed)
	}

	logger, closeLog, err := setupLogger(cfg.Server.LogLevel, cfg.Server.LogFile, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	recorder := history.NewRecorder(logger, cfg.History.Size, cfg.History.File)
	if err := recorder.Load(); err != nil {
		logger.Warn("Failed to load match history", "file", cfg.History.File, "error", err)
	}

	monitors := []session.MatchMonitor{recorder}
	if c.Pretty {
		monitors = append(monitors, server.NewPrettyMonitor(os.Stdout))
	}

	opts := []session.Option{session.WithMonitor(monitors...)}
	if c.Seed > 0 {
		opts = append(opts, session.WithSeedSource(session.NewFixedSeeds(c.Seed)))
		logger.Info("Using fixed board seed", "seed", c.Seed)
	}
	coordinator := session.NewCoordinator(logger, opts...)

	ctx, stop := signalContext(logger)
	defer stop()

	logger.Info("Starting Mine Duel server",
		"addr", cfg.Addr(),
		"config", c.Config,
		"history", cfg.History.File)

	return server.NewServer(coordinator, recorder, logger).Run(ctx, cfg.Addr())
}
