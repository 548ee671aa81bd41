package cvserver

import (
	"context"

	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AIGateHealthInput is the input for ai_gate_health.
type AIGateHealthInput struct {
	Force bool `json:"force,omitempty"` // bypass the health cache
}

func registerAIGateHealth(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ai_gate_health",
		Description: "Probe the AI gate's model with synthetic spans and report health: confidence median/stdev, response time, and the failure reason if unhealthy. Results are cached; set force to re-probe.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input AIGateHealthInput) (*mcp.CallToolResult, cv.HealthCheckResult, error) {
		gate := pipeline.Gate()
		if input.Force {
			gate.InvalidateHealthCache()
		}
		return nil, gate.Healthcheck(ctx), nil
	})
}
