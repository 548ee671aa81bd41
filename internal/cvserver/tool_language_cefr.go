package cvserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LanguageCEFRInput is the input for language_cefr.
type LanguageCEFRInput struct {
	Text string `json:"text"`
}

// LanguageCEFROutput is the output for language_cefr.
type LanguageCEFROutput struct {
	Level      string  `json:"level"`
	Confidence float64 `json:"confidence"`
}

func registerLanguageCEFR(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "language_cefr",
		Description: "Map a language proficiency phrase (e.g. 'anglais courant', 'fluent English', 'B2') to a CEFR level with a confidence score. Unknown wording returns an empty level.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input LanguageCEFRInput) (*mcp.CallToolResult, LanguageCEFROutput, error) {
		if strings.TrimSpace(input.Text) == "" {
			return nil, LanguageCEFROutput{}, fmt.Errorf("text is required")
		}
		level, conf := cv.MapCEFRLevel(input.Text)
		return nil, LanguageCEFROutput{Level: level, Confidence: conf}, nil
	})
}
