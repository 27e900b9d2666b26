package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/Protocol-Lattice/memory-mcp/src/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	require.NoError(t, cmd.Run(context.Background(), []string{"memory-mcp", "version"}))
	assert.Contains(t, out.String(), "memory-mcp")
}

func TestApplyFlags(t *testing.T) {
	var got config.Config
	cmd := serveCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		got = config.Default()
		applyFlags(c, &got)
		return nil
	}
	err := cmd.Run(context.Background(), []string{"serve",
		"--transport", "stdio", "--port", "9000", "--default-user-id", "bob", "--infer"})
	require.NoError(t, err)

	assert.Equal(t, config.TransportStdio, got.Transport)
	assert.Equal(t, 9000, got.Server.Port)
	assert.Equal(t, "bob", got.Identity.DefaultUserID)
	assert.True(t, got.Memory.Infer)
	assert.Equal(t, "0.0.0.0", got.Server.Host)
	assert.Equal(t, config.StoreMemory, got.Store.Kind)
}
