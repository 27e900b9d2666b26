package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

type DeleteAllTool struct {
	svc      MemoryService
	resolver Resolver
	logger   *slog.Logger
}

func NewDeleteAllTool(svc MemoryService, resolver Resolver, logger *slog.Logger) *DeleteAllTool {
	return &DeleteAllTool{svc: svc, resolver: resolver, logger: logger}
}

func (t *DeleteAllTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_all_memories",
		mcp.WithDescription("Delete all stored memories for the current user. Requires explicit confirmation."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithBoolean("confirm",
			mcp.Description("Must be set to true to confirm deletion. Safety guard against accidental deletion."),
			mcp.DefaultBool(false)),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
	)
}

func (t *DeleteAllTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, who := resolve(ctx, t.resolver, req)
	if !req.GetBool("confirm", false) {
		t.logger.WarnContext(ctx, "delete all rejected without confirmation")
		return failure(ctx, t.logger, "delete_all_memories", ErrConfirmationRequired), nil
	}

	n, err := t.svc.DeleteAll(ctx, who.ID)
	if err != nil {
		return failure(ctx, t.logger, "delete_all_memories", err), nil
	}
	t.logger.InfoContext(ctx, "all memories deleted", "count", n)
	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted %d memories for user '%s'.", n, who.ID)), nil
}
