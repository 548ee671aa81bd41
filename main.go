// go_cv — Résumé Extraction MCP server.
//
// Exposes the extraction pipeline as MCP tools: cv_extract, cv_extract_url,
// boundary_normalize, ai_gate_health, extraction_report, language_cefr.
// Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_cv/internal/cvserver"
	"github.com/anatolykoptev/go_cv/internal/engine"
	"github.com/anatolykoptev/go_cv/internal/engine/cv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	pipeline := initEngine()

	slog.Info("starting go_cv",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_cv",
		Version: version,
	}, nil)

	cvserver.RegisterTools(server, pipeline)
	slog.Info("tools registered", slog.Int("count", 6))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_cv",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() *cv.Pipeline {
	c := engine.Config{
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.0),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 4096),
		MaxContentChars:      env.Int("MAX_CONTENT_CHARS", 6000),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 10*time.Second),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		AuditDBPath:          env.Str("AUDIT_DB_PATH", ""),
		LexiconPath:          env.Str("LEXICON_PATH", ""),
		PredictRateLimit:     env.Float("PREDICT_RATE_LIMIT", 2),
		PredictBurst:         env.Int("PREDICT_BURST", 4),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)

	lex, err := cv.LoadLexicon(c.LexiconPath)
	if err != nil {
		slog.Warn("lexicon load failed, using defaults", slog.Any("error", err))
		lex = cv.DefaultLexicon()
	}

	opts := cv.DefaultOptions()
	opts.Lexicon = lex
	opts.Gate.Mode = env.Str("EXTRACTION_MODE", cv.GateModeHybrid)
	opts.Gate.SoftThreshold = env.Float("GATE_SOFT_THRESHOLD", opts.Gate.SoftThreshold)
	opts.Gate.HardThreshold = env.Float("GATE_HARD_THRESHOLD", opts.Gate.HardThreshold)
	opts.Gate.MaxResponseTime = env.Duration("GATE_MAX_RESPONSE_TIME", opts.Gate.MaxResponseTime)
	opts.Gate.HealthCacheTTL = env.Duration("GATE_HEALTH_CACHE_TTL", opts.Gate.HealthCacheTTL)
	opts.Triad.MinDateConf = env.Float("MIN_DATE_CONF", opts.Triad.MinDateConf)
	opts.Triad.MinRoleTokenConf = env.Float("MIN_ROLE_TOKEN_CONF", opts.Triad.MinRoleTokenConf)
	opts.Triad.MinOrgConf = env.Float("MIN_ORG_CONF", opts.Triad.MinOrgConf)
	opts.Triad.MinAssoc = env.Float("MIN_ASSOC", opts.Triad.MinAssoc)
	opts.Triad.SchoolOrgBoost = env.Float("SCHOOL_ORG_BOOST", opts.Triad.SchoolOrgBoost)
	opts.Triad.SchoolOrgMin = env.Float("SCHOOL_ORG_MIN", opts.Triad.SchoolOrgMin)
	opts.Guard.KillRadius = env.Int("KILL_RADIUS", opts.Guard.KillRadius)
	opts.Guard.MaxCrossColumnDistance = env.Int("MAX_CROSS_COLUMN_DISTANCE", opts.Guard.MaxCrossColumnDistance)
	opts.Internship.MinRebindConfidence = env.Float("MIN_REBIND_CONFIDENCE", opts.Internship.MinRebindConfidence)
	opts.Internship.ProximityMaxLines = env.Int("PROXIMITY_MAX_LINES", opts.Internship.ProximityMaxLines)
	opts.MergeMaxGap = env.Int("MERGE_MAX_GAP", opts.MergeMaxGap)
	opts.Model = cv.NewLLMModel()
	opts.Tokenizer = cv.WordTokenizer{}

	// Profile store (PostgreSQL, optional)
	if c.DatabaseURL != "" {
		pdb, err := cv.ConnectProfileDB(context.Background(), c.DatabaseURL)
		if err != nil {
			slog.Warn("profile DB init failed", slog.Any("error", err))
		} else {
			cv.SetProfileDB(pdb)
			slog.Info("profile DB initialized")
		}
	}

	return cv.NewPipeline(opts)
}
