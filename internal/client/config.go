package client

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete client configuration.
type Config struct {
	Server ServerConnection
	UI     UISettings
	Bot    BotSettings
}

// ServerConnection contains server connection settings.
type ServerConnection struct {
	URL            string `hcl:"url,optional"`
	ConnectTimeout int    `hcl:"connect_timeout,optional"` // seconds
}

// UISettings contains terminal UI settings.
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
	Mouse    *bool  `hcl:"mouse,optional"`
}

// BotSettings configures the autoplayer.
type BotSettings struct {
	IntervalMS int `hcl:"interval_ms,optional"`
}

type fileConfig struct {
	Server *ServerConnection `hcl:"server,block"`
	UI     *UISettings       `hcl:"ui,block"`
	Bot    *BotSettings      `hcl:"bot,block"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	mouse := true
	return &Config{
		Server: ServerConnection{
			URL:            "http://localhost:5000",
			ConnectTimeout: 10,
		},
		UI: UISettings{
			LogLevel: "warn",
			LogFile:  "mineduel-client.log",
			Mouse:    &mouse,
		},
		Bot: BotSettings{
			IntervalMS: int(DefaultRevealInterval / time.Millisecond),
		},
	}
}

// LoadConfig loads client configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	config := DefaultConfig()
	if s := raw.Server; s != nil {
		if s.URL != "" {
			config.Server.URL = s.URL
		}
		if s.ConnectTimeout != 0 {
			config.Server.ConnectTimeout = s.ConnectTimeout
		}
	}
	if ui := raw.UI; ui != nil {
		if ui.LogLevel != "" {
			config.UI.LogLevel = ui.LogLevel
		}
		if ui.LogFile != "" {
			config.UI.LogFile = ui.LogFile
		}
		if ui.Mouse != nil {
			config.UI.Mouse = ui.Mouse
		}
	}
	if b := raw.Bot; b != nil && b.IntervalMS != 0 {
		config.Bot.IntervalMS = b.IntervalMS
	}

	return config, nil
}

// Validate validates the client configuration.
func (c *Config) Validate() error {
	if _, err := WebSocketURL(c.Server.URL); err != nil {
		return err
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if _, err := log.ParseLevel(c.UI.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}
	if c.Bot.IntervalMS <= 0 {
		return fmt.Errorf("bot interval must be positive")
	}
	return nil
}

// ConnectTimeout returns the dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Server.ConnectTimeout) * time.Second
}

// RevealInterval returns the autoplayer's move interval.
func (c *Config) RevealInterval() time.Duration {
	return time.Duration(c.Bot.IntervalMS) * time.Millisecond
}

// MouseEnabled reports whether the UI should capture mouse clicks.
func (c *Config) MouseEnabled() bool {
	return c.UI.Mouse == nil || *c.UI.Mouse
}
