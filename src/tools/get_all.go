package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

type GetAllTool struct {
	svc      MemoryService
	resolver Resolver
	logger   *slog.Logger
}

func NewGetAllTool(svc MemoryService, resolver Resolver, logger *slog.Logger) *GetAllTool {
	return &GetAllTool{svc: svc, resolver: resolver, logger: logger}
}

func (t *GetAllTool) Definition() mcp.Tool {
	return mcp.NewTool("get_all_memories",
		mcp.WithDescription("Get all stored memories for the current user. "+
			"Returns a JSON formatted list of all stored memories, oldest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
	)
}

func (t *GetAllTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, who := resolve(ctx, t.resolver, req)

	recs, err := t.svc.GetAll(ctx, who.ID)
	if err != nil {
		return failure(ctx, t.logger, "get_all_memories", err), nil
	}
	out, err := renderMemories(recs, false)
	if err != nil {
		return failure(ctx, t.logger, "get_all_memories", err), nil
	}
	t.logger.InfoContext(ctx, "memories listed", "count", len(recs))
	return mcp.NewToolResultText(out), nil
}
