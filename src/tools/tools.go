// Package tools exposes the memory service as MCP tools. Every handler
// resolves the caller identity once at entry and scopes all work to it.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Protocol-Lattice/memory-mcp/src/identity"
	"github.com/Protocol-Lattice/memory-mcp/src/memory"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
)

// ErrConfirmationRequired rejects delete_all_memories without confirm=true.
var ErrConfirmationRequired = errors.New("tools: deletion not confirmed")

const confirmationMessage = "Deletion not confirmed. Set confirm=true to delete all memories. This action cannot be undone."

// MemoryService is the storage collaborator. Every call is partitioned by user id.
type MemoryService interface {
	Add(ctx context.Context, userID, text string, metadata map[string]any) ([]model.MemoryRecord, error)
	Search(ctx context.Context, userID, query string, limit int) ([]model.MemoryRecord, error)
	GetAll(ctx context.Context, userID string) ([]model.MemoryRecord, error)
	DeleteAll(ctx context.Context, userID string) (int, error)
}

// Resolver produces the identity for one call from its explicit argument and
// the request context.
type Resolver interface {
	ForCall(ctx context.Context, explicit string) identity.Resolution
}

const userIDDescription = "Optional explicit user identifier. Leave empty to use automatic detection."

// Register adds the four memory tools to s.
func Register(s *server.MCPServer, svc MemoryService, resolver Resolver, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	save := NewSaveTool(svc, resolver, logger)
	s.AddTool(save.Definition(), save.Handle)

	getAll := NewGetAllTool(svc, resolver, logger)
	s.AddTool(getAll.Definition(), getAll.Handle)

	search := NewSearchTool(svc, resolver, logger)
	s.AddTool(search.Definition(), search.Handle)

	del := NewDeleteAllTool(svc, resolver, logger)
	s.AddTool(del.Definition(), del.Handle)
}

// resolve binds the per-call resolution so later log lines carry it.
func resolve(ctx context.Context, resolver Resolver, req mcp.CallToolRequest) (context.Context, identity.Resolution) {
	res := resolver.ForCall(ctx, identity.ExtractExplicit(req.GetArguments()))
	return identity.WithResolution(ctx, res), res
}

// failure maps an error onto an MCP error result. Upstream details stay in
// the server log.
func failure(ctx context.Context, logger *slog.Logger, op string, err error) *mcp.CallToolResult {
	var up *memory.UpstreamError
	switch {
	case errors.As(err, &up):
		logger.ErrorContext(ctx, "tool call failed", "tool", op, "stage", up.Op, "error", err)
		return mcp.NewToolResultError(op + ": upstream failure")
	case errors.Is(err, memory.ErrEmptyText):
		return mcp.NewToolResultError(op + ": text is required")
	case errors.Is(err, ErrConfirmationRequired):
		return mcp.NewToolResultError(op + ": " + confirmationMessage)
	default:
		logger.ErrorContext(ctx, "tool call failed", "tool", op, "error", err)
		return mcp.NewToolResultError(op + ": internal error")
	}
}

// memoryView is the wire shape of one memory in tool results.
type memoryView struct {
	ID        string    `json:"id"`
	Memory    string    `json:"memory"`
	Score     *float64  `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func renderMemories(recs []model.MemoryRecord, withScore bool) (string, error) {
	views := make([]memoryView, 0, len(recs))
	for _, rec := range recs {
		v := memoryView{ID: rec.ID, Memory: rec.Content, CreatedAt: rec.CreatedAt}
		if withScore {
			score := rec.Score
			v.Score = &score
		}
		views = append(views, v)
	}
	out, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render memories: %w", err)
	}
	return string(out), nil
}
