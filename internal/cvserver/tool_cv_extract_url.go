package cvserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_cv/internal/engine"
	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/anatolykoptev/go_cv/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CVExtractURLInput is the input for cv_extract_url.
type CVExtractURLInput struct {
	URL       string `json:"url"`
	DocID     string `json:"doc_id,omitempty"`
	SaveAudit bool   `json:"save_audit,omitempty"`
}

func registerCVExtractURL(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_extract_url",
		Description: "Fetch an HTML résumé from a URL, convert it to text, and run the full extraction pipeline on it. Returns candidates, gate decision, and the extraction report.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input CVExtractURLInput) (*mcp.CallToolResult, cv.ExtractionResult, error) {
		if strings.TrimSpace(input.URL) == "" {
			return nil, cv.ExtractionResult{}, fmt.Errorf("url is required")
		}

		docID := input.DocID
		if docID == "" {
			docID = engine.CacheKey("url", input.URL)
		}

		cacheKey := engine.CacheKey("cv_extract_url", input.URL)
		if out, ok := engine.CacheLoadJSON[cv.ExtractionResult](ctx, cacheKey); ok {
			return nil, out, nil
		}

		lines, err := cv.FetchDocumentLines(ctx, input.URL)
		if err != nil {
			return nil, cv.ExtractionResult{}, fmt.Errorf("fetch failed: %w", err)
		}

		sections := toolutil.SectionsFromLines(lines)
		result, err := pipeline.ExtractDocument(ctx, docID, lines, nil, sections)
		if err != nil {
			return nil, cv.ExtractionResult{}, err
		}

		if input.SaveAudit {
			if _, err := cv.SaveExport(ctx, result.Report); err != nil {
				return nil, cv.ExtractionResult{}, fmt.Errorf("audit save failed: %w", err)
			}
		}

		engine.CacheStoreJSON(ctx, cacheKey, *result)
		return nil, *result, nil
	})
}
