// Package cvserver exposes the extraction pipeline as MCP tools.
package cvserver

import (
	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// pipeline is the process-wide extraction pipeline, set by RegisterTools.
var pipeline *cv.Pipeline

// RegisterTools registers all extraction tools on the given MCP server:
// cv_extract, cv_extract_url, boundary_normalize, ai_gate_health,
// extraction_report, language_cefr.
func RegisterTools(server *mcp.Server, p *cv.Pipeline) {
	pipeline = p
	registerCVExtract(server)
	registerCVExtractURL(server)
	registerBoundaryNormalize(server)
	registerAIGateHealth(server)
	registerExtractionReport(server)
	registerLanguageCEFR(server)
}
