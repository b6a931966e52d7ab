package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the match server"`
	Client  ClientCmd        `cmd:"" help:"Play a match in the terminal"`
	Bot     BotCmd           `cmd:"" help:"Play a match with the built-in autoplayer"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("mineduel"),
		kong.Description("Two-player race to clear the same minefield"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
