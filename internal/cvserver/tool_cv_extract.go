package cvserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_cv/internal/engine"
	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/anatolykoptev/go_cv/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CVExtractInput is the input for cv_extract.
type CVExtractInput struct {
	DocID      string        `json:"doc_id,omitempty"`
	Text       string        `json:"text"`
	Boundaries []cv.Boundary `json:"boundaries,omitempty"`
	SaveAudit  bool          `json:"save_audit,omitempty"`
}

func registerCVExtract(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_extract",
		Description: "Extract structured experience and education items from résumé text. Accepts optional pre-detected section boundaries; without them, sections are detected from blank-line structure. Returns candidates with triad confidence scores, gate decision, and the full extraction report.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input CVExtractInput) (*mcp.CallToolResult, cv.ExtractionResult, error) {
		if strings.TrimSpace(input.Text) == "" {
			return nil, cv.ExtractionResult{}, fmt.Errorf("text is required")
		}

		docID := input.DocID
		if docID == "" {
			docID = engine.CacheKey("doc", input.Text)
		}

		cacheKey := engine.CacheKey("cv_extract", docID, input.Text)
		if out, ok := engine.CacheLoadJSON[cv.ExtractionResult](ctx, cacheKey); ok {
			return nil, out, nil
		}

		lines := engine.SplitLines(input.Text)

		var boundaries any
		var sections []cv.Section
		if len(input.Boundaries) > 0 {
			boundaries = input.Boundaries
		} else {
			sections = toolutil.SectionsFromLines(lines)
		}

		result, err := pipeline.ExtractDocument(ctx, docID, lines, boundaries, sections)
		if err != nil {
			var unhealthy *cv.AIUnhealthyError
			if errors.As(err, &unhealthy) {
				return nil, cv.ExtractionResult{}, fmt.Errorf("extraction aborted: %w", unhealthy)
			}
			return nil, cv.ExtractionResult{}, err
		}

		if input.SaveAudit {
			if _, err := cv.SaveExport(ctx, result.Report); err != nil {
				slog.Warn("cv_extract: audit save failed", slog.Any("error", err))
			}
		}
		if db := cv.GetProfileDB(); db != nil {
			if err := db.SaveCandidates(ctx, docID, result.Gate.Accepted); err != nil {
				slog.Warn("cv_extract: profile save failed", slog.Any("error", err))
			}
		}

		engine.CacheStoreJSON(ctx, cacheKey, *result)
		return nil, *result, nil
	})
}
