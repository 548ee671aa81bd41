package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMClient          *llm.Client

	MaxContentChars int
	FetchTimeout    time.Duration

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	DatabaseURL string // Postgres profile store; empty = disabled
	AuditDBPath string // SQLite audit store; empty = ~/.go_cv/audit.db
	LexiconPath string // YAML lexicon overrides; empty = compiled-in defaults

	PredictRateLimit float64 // model predict calls per second
	PredictBurst     int

	HTTPClient *http.Client
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (cv).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
