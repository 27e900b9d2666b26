package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const previewRunes = 100

type SaveTool struct {
	svc      MemoryService
	resolver Resolver
	logger   *slog.Logger
}

func NewSaveTool(svc MemoryService, resolver Resolver, logger *slog.Logger) *SaveTool {
	return &SaveTool{svc: svc, resolver: resolver, logger: logger}
}

func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("save_memory",
		mcp.WithDescription("Save information to long-term memory for the current user. "+
			"Stores any type of information with semantic indexing for later retrieval. "+
			"User identification is automatic via HTTP headers in multi-user environments."),
		mcp.WithString("text", mcp.Required(),
			mcp.Description("The content to store in memory, including any relevant details and context")),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
	)
}

func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, who := resolve(ctx, t.resolver, req)
	text := req.GetString("text", "")

	recs, err := t.svc.Add(ctx, who.ID, text, map[string]any{"source": "save_memory"})
	if err != nil {
		return failure(ctx, t.logger, "save_memory", err), nil
	}
	if len(recs) == 0 {
		t.logger.InfoContext(ctx, "nothing new to save")
		return mcp.NewToolResultText(fmt.Sprintf("Nothing new to save for user '%s'; every fact was already stored.", who.ID)), nil
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	p := preview(strings.TrimSpace(text))
	t.logger.InfoContext(ctx, "memory saved", "count", len(recs), "preview", p)
	return mcp.NewToolResultText(fmt.Sprintf("Successfully saved memory for user '%s': %s (ids: %s)",
		who.ID, p, strings.Join(ids, ", "))), nil
}

// preview cuts text to its first 100 runes.
func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "..."
}
