package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Protocol-Lattice/memory-mcp/src/app"
	"github.com/Protocol-Lattice/memory-mcp/src/config"
	"github.com/Protocol-Lattice/memory-mcp/src/logging"
	"github.com/Protocol-Lattice/memory-mcp/src/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the memory server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON config file"},
			&cli.StringFlag{Name: "transport", Usage: "sse, streamable-http or stdio"},
			&cli.StringFlag{Name: "host", Usage: "listen host"},
			&cli.IntFlag{Name: "port", Usage: "listen port"},
			&cli.StringFlag{Name: "default-user-id", Usage: "identity used when a request carries none"},
			&cli.StringFlag{Name: "store", Usage: "memory, postgres, mongodb or neo4j"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.BoolFlag{Name: "infer", Usage: "extract facts with the LLM before saving"},
		},
		Action: serve,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(cmd.Root().Writer, "%s %s (commit: %s)\n", server.Name, server.Version, GitCommit)
			return err
		},
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	logger, logCloser, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "startup failed", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close backends", "error", err)
		}
	}()
	return a.Run(ctx)
}

// applyFlags overrides loaded settings with the flags given on the command line.
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("transport") {
		cfg.Transport = cmd.String("transport")
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("default-user-id") {
		cfg.Identity.DefaultUserID = cmd.String("default-user-id")
	}
	if cmd.IsSet("store") {
		cfg.Store.Kind = cmd.String("store")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("infer") {
		cfg.Memory.Infer = cmd.Bool("infer")
	}
}
