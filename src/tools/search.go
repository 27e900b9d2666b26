package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Protocol-Lattice/memory-mcp/src/memory"
)

type SearchTool struct {
	svc      MemoryService
	resolver Resolver
	logger   *slog.Logger
}

func NewSearchTool(svc MemoryService, resolver Resolver, logger *slog.Logger) *SearchTool {
	return &SearchTool{svc: svc, resolver: resolver, logger: logger}
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_memories",
		mcp.WithDescription("Search memories using semantic search for the current user. "+
			"Finds relevant information from memory ranked by relevance."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(),
			mcp.Description("Search query string describing what you're looking for. Can be natural language.")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return"),
			mcp.DefaultNumber(memory.DefaultSearchLimit)),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, who := resolve(ctx, t.resolver, req)
	query := req.GetString("query", "")
	limit := req.GetInt("limit", memory.DefaultSearchLimit)

	recs, err := t.svc.Search(ctx, who.ID, query, limit)
	if err != nil {
		return failure(ctx, t.logger, "search_memories", err), nil
	}
	out, err := renderMemories(recs, true)
	if err != nil {
		return failure(ctx, t.logger, "search_memories", err), nil
	}
	t.logger.InfoContext(ctx, "memories searched", "results", len(recs), "limit", limit)
	return mcp.NewToolResultText(out), nil
}
