package cvserver

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ExtractionReportInput is the input for extraction_report.
type ExtractionReportInput struct {
	DocID string `json:"doc_id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ExtractionReportOutput is the output for extraction_report.
type ExtractionReportOutput struct {
	Exports []cv.SavedExport `json:"exports"`
	Total   int              `json:"total"`
}

func registerExtractionReport(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extraction_report",
		Description: "List persisted extraction audit reports, newest first. Filter by doc_id. Each report carries quality metrics, decision logs, routing counts, and success-criteria evaluation.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ExtractionReportInput) (*mcp.CallToolResult, ExtractionReportOutput, error) {
		exports, err := cv.ListExports(ctx, input.DocID, input.Limit)
		if err != nil {
			return nil, ExtractionReportOutput{}, fmt.Errorf("list exports: %w", err)
		}
		return nil, ExtractionReportOutput{Exports: exports, Total: len(exports)}, nil
	})
}
