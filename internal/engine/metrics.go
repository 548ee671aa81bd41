package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	ExtractRequests     atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	PredictCalls        atomic.Int64
	PredictErrors       atomic.Int64
	HealthChecks        atomic.Int64
	HealthCheckFailures atomic.Int64
	FetchRequests       atomic.Int64
	FetchErrors         atomic.Int64
	AuditWrites         atomic.Int64
	ProfileWrites       atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"extract_requests":      metrics.ExtractRequests.Load(),
		"llm_calls":             metrics.LLMCalls.Load(),
		"llm_errors":            metrics.LLMErrors.Load(),
		"predict_calls":         metrics.PredictCalls.Load(),
		"predict_errors":        metrics.PredictErrors.Load(),
		"health_checks":         metrics.HealthChecks.Load(),
		"health_check_failures": metrics.HealthCheckFailures.Load(),
		"fetch_requests":        metrics.FetchRequests.Load(),
		"fetch_errors":          metrics.FetchErrors.Load(),
		"audit_writes":          metrics.AuditWrites.Load(),
		"profile_writes":        metrics.ProfileWrites.Load(),
		"cache_hits":            hits,
		"cache_misses":          misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"extract_requests", "llm_calls", "llm_errors",
		"predict_calls", "predict_errors",
		"health_checks", "health_check_failures",
		"fetch_requests", "fetch_errors",
		"audit_writes", "profile_writes",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the cv sub-package.
func IncrExtractRequests()     { metrics.ExtractRequests.Add(1) }
func IncrPredictCalls()        { metrics.PredictCalls.Add(1) }
func IncrPredictErrors()       { metrics.PredictErrors.Add(1) }
func IncrHealthChecks()        { metrics.HealthChecks.Add(1) }
func IncrHealthCheckFailures() { metrics.HealthCheckFailures.Add(1) }
func IncrFetchRequests()       { metrics.FetchRequests.Add(1) }
func IncrFetchErrors()         { metrics.FetchErrors.Add(1) }
func IncrAuditWrites()         { metrics.AuditWrites.Add(1) }
func IncrProfileWrites()       { metrics.ProfileWrites.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
