package server

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/mineduel/internal/history"
)

// DefaultPort is the port the server listens on when none is configured.
const DefaultPort = 5000

// Config represents the complete server configuration.
type Config struct {
	Server  Settings
	History HistorySettings
}

// Settings contains listener and logging configuration.
type Settings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// HistorySettings controls the match history kept for /stats.
type HistorySettings struct {
	Size int    `hcl:"size,optional"`
	File string `hcl:"file,optional"`
}

// Both blocks may be omitted from the file.
type fileConfig struct {
	Server  *Settings        `hcl:"server,block"`
	History *HistorySettings `hcl:"history,block"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: Settings{
			Address:  "localhost",
			Port:     DefaultPort,
			LogLevel: "info",
		},
		History: HistorySettings{
			Size: history.DefaultSize,
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
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

	config := DefaultConfig()
	if s := raw.Server; s != nil {
		if s.Address != "" {
			config.Server.Address = s.Address
		}
		if s.Port != 0 {
			config.Server.Port = s.Port
		}
		if s.LogLevel != "" {
			config.Server.LogLevel = s.LogLevel
		}
		config.Server.LogFile = s.LogFile
	}
	if h := raw.History; h != nil {
		if h.Size != 0 {
			config.History.Size = h.Size
		}
		config.History.File = h.File
	}

	return config, nil
}

// Validate validates the server configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.History.Size < 0 {
		return fmt.Errorf("history size must not be negative: %d", c.History.Size)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}
