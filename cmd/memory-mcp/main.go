// memory-mcp serves per-user long-term memory over the Model Context Protocol.
//
// Usage:
//
//	memory-mcp [serve] [--config file] [--transport sse|streamable-http|stdio] ...
//	memory-mcp version
//
// Settings come from the config file, a .env file and the environment;
// flags override all of them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Protocol-Lattice/memory-mcp/src/server"
)

// Set with -ldflags "-X main.GitCommit=...".
var GitCommit = "unknown"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "memory-mcp:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:           "memory-mcp",
		Usage:          "per-user long-term memory MCP server",
		Version:        fmt.Sprintf("%s (commit: %s)", server.Version, GitCommit),
		Commands:       []*cli.Command{serveCommand(), versionCommand()},
		DefaultCommand: "serve",
	}
}
