package cvserver

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// BoundaryNormalizeInput is the input for boundary_normalize.
type BoundaryNormalizeInput struct {
	Boundaries []cv.Boundary `json:"boundaries"`
	MaxLines   int           `json:"max_lines,omitempty"`
}

// BoundaryNormalizeOutput is the output for boundary_normalize.
type BoundaryNormalizeOutput struct {
	Boundaries []cv.Boundary    `json:"boundaries"`
	Stats      cv.BoundaryStats `json:"stats"`
}

func registerBoundaryNormalize(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "boundary_normalize",
		Description: "Normalize a set of section boundaries: merge adjacent same-type sections, resolve overlaps by section strength, and validate indices. Returns the clean boundary set with before/after overlap counts.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input BoundaryNormalizeInput) (*mcp.CallToolResult, BoundaryNormalizeOutput, error) {
		if len(input.Boundaries) == 0 {
			return nil, BoundaryNormalizeOutput{}, fmt.Errorf("boundaries are required")
		}

		bs, stats := cv.NormalizeBoundariesStats(input.Boundaries)
		if input.MaxLines > 0 {
			bs = cv.ValidateBoundaryIndices(bs, input.MaxLines)
		}
		return nil, BoundaryNormalizeOutput{Boundaries: bs, Stats: stats}, nil
	})
}
