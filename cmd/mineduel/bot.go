package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/mineduel/internal/client"
)

// BotCmd plays one match without a UI and prints the result.
type BotCmd struct {
	Config   string        `short:"c" default:"mineduel-client.hcl" help:"Path to HCL configuration file"`
	Server   string        `short:"s" help:"Server URL to connect to (overrides config)"`
	LogLevel string        `short:"l" default:"info" help:"Log level (debug|info|warn|error)"`
	Interval time.Duration `help:"Time between moves (overrides config)"`
}

func (c *BotCmd) Run() error {
	cfg, err := loadClientConfig(c.Config, c.Server, c.LogLevel, "")
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.UI.LogLevel, "", os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	interval := cfg.RevealInterval()
	if c.Interval > 0 {
		interval = c.Interval
	}

	ctx, stop := signalContext(logger)
	defer stop()

	wsClient := client.NewClient(cfg.Server.URL, logger)
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := wsClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = wsClient.Close() }()

	s := client.NewSession(wsClient, logger)
	bot := client.NewAutoplayer(s, wsClient.Messages(), quartz.NewReal(), interval, logger)

	logger.Info("Bot connected", "server", cfg.Server.URL, "interval", interval)

	result, err := bot.Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case result.Abandoned():
		fmt.Println("Opponent left the match")
	case s.Won():
		fmt.Printf("%s won in %s\n", s.PlayerID(), result.Times[s.PlayerID()])
	default:
		fmt.Printf("%s lost to %s (%s vs %s)\n", s.PlayerID(), *result.Winner,
			result.Times[s.PlayerID()], result.Times[*result.Winner])
	}
	return nil
}
