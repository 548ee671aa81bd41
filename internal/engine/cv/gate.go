package cv

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// Gate input modes.
const (
	GateModeStrict    = "STRICT"
	GateModeFirst     = "FIRST"
	GateModeHybrid    = "HYBRID"
	GateModeHeuristic = "HEURISTIC"
)

// Decision modes reported in GateDecision.Mode.
const (
	ModeAIStrict      = "AI_STRICT"
	ModeAIFirst       = "AI_FIRST"
	ModeHybridFusion  = "HYBRID_FUSION"
	ModeHeuristicOnly = "HEURISTIC_ONLY"
)

// AIUnhealthyError is returned in STRICT mode when the model cannot be
// trusted. Callers distinguish it from low-quality-but-successful runs
// via errors.As.
type AIUnhealthyError struct {
	Reason string
	Err    error
}

func (e *AIUnhealthyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai gate unhealthy: %s: %v", e.Reason, e.Err)
	}
	return "ai gate unhealthy: " + e.Reason
}

func (e *AIUnhealthyError) Unwrap() error { return e.Err }

// HealthCheckResult is the outcome of one model health probe.
type HealthCheckResult struct {
	OK             bool    `json:"ok"`
	Reason         string  `json:"reason,omitempty"`
	MedianConf     float64 `json:"median_conf"`
	StdevConf      float64 `json:"stdev_conf"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	WarmupSuccess  bool    `json:"warmup_success"`
}

// GateConfig holds gating thresholds and health-check limits.
type GateConfig struct {
	Mode            string // STRICT, FIRST, HYBRID, HEURISTIC
	SoftThreshold   float64
	HardThreshold   float64
	MinMedianConf   float64
	MinStdevConf    float64
	MaxResponseTime time.Duration
	HealthCacheTTL  time.Duration
}

// DefaultGateConfig mirrors the tuned production thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Mode:            GateModeHybrid,
		SoftThreshold:   0.30,
		HardThreshold:   0.45,
		MinMedianConf:   0.15,
		MinStdevConf:    0.01,
		MaxResponseTime: 10 * time.Second,
		HealthCacheTTL:  300 * time.Second,
	}
}

// GateDecision is the gate's verdict for a batch of candidates.
type GateDecision struct {
	Mode     string           `json:"mode"`
	Accepted []*CandidateItem `json:"accepted"`
	Weak     []*CandidateItem `json:"weak"`
	Reason   string           `json:"reason,omitempty"`
}

// warmupSpans are synthetic inputs covering the three evidence kinds.
var warmupSpans = []string{
	"Senior Software Engineer",
	"TechCorp Solutions Inc",
	"2019 - 2023",
}

// Gate decides which candidates the AI model admits, with a cached health
// check guarding every model-backed mode.
type Gate struct {
	cfg       GateConfig
	model     Model
	tokenizer Tokenizer

	mu       sync.Mutex
	cached   *HealthCheckResult
	cachedAt time.Time
}

// NewGate creates a gate. Model and tokenizer may be nil; the health check
// reports them as such.
func NewGate(cfg GateConfig, model Model, tokenizer Tokenizer) *Gate {
	if cfg.HardThreshold == 0 {
		cfg = DefaultGateConfig()
	}
	return &Gate{cfg: cfg, model: model, tokenizer: tokenizer}
}

// Healthcheck probes the model with synthetic spans and validates the
// confidence distribution and response time. Cached per HealthCacheTTL.
func (g *Gate) Healthcheck(ctx context.Context) HealthCheckResult {
	g.mu.Lock()
	if g.cached != nil && time.Since(g.cachedAt) < g.cfg.HealthCacheTTL {
		res := *g.cached
		g.mu.Unlock()
		return res
	}
	g.mu.Unlock()

	res := g.runHealthcheck(ctx)

	g.mu.Lock()
	g.cached = &res
	g.cachedAt = time.Now()
	g.mu.Unlock()
	return res
}

func (g *Gate) runHealthcheck(ctx context.Context) HealthCheckResult {
	engine.IncrHealthChecks()

	if g.model == nil || g.tokenizer == nil {
		engine.IncrHealthCheckFailures()
		return HealthCheckResult{Reason: "model_or_tokenizer_none"}
	}

	start := time.Now()
	preds, err := g.model.Predict(ctx, warmupSpans)
	elapsed := time.Since(start)
	elapsedMS := float64(elapsed.Milliseconds())

	if err != nil {
		engine.IncrHealthCheckFailures()
		return HealthCheckResult{
			Reason:         fmt.Sprintf("warmup_failed_%T", err),
			ResponseTimeMS: elapsedMS,
		}
	}
	if len(preds) == 0 {
		engine.IncrHealthCheckFailures()
		return HealthCheckResult{Reason: "empty_predictions", ResponseTimeMS: elapsedMS}
	}

	confs := make([]float64, 0, len(preds))
	for _, p := range preds {
		c := p.Confidence()
		if math.IsNaN(c) || math.IsInf(c, 0) {
			engine.IncrHealthCheckFailures()
			return HealthCheckResult{
				Reason:         "non_finite_confidences",
				ResponseTimeMS: elapsedMS,
				WarmupSuccess:  true,
			}
		}
		confs = append(confs, c)
	}

	med := median(confs)
	std := stdev(confs)

	if elapsed > g.cfg.MaxResponseTime {
		engine.IncrHealthCheckFailures()
		return HealthCheckResult{
			Reason:         fmt.Sprintf("response_too_slow_%d", elapsed.Milliseconds()),
			MedianConf:     med,
			StdevConf:      std,
			ResponseTimeMS: elapsedMS,
			WarmupSuccess:  true,
		}
	}

	if med < g.cfg.MinMedianConf || std < g.cfg.MinStdevConf {
		engine.IncrHealthCheckFailures()
		return HealthCheckResult{
			Reason:         fmt.Sprintf("poor_conf_distribution_med=%.3f_std=%.3f", med, std),
			MedianConf:     med,
			StdevConf:      std,
			ResponseTimeMS: elapsedMS,
			WarmupSuccess:  true,
		}
	}

	return HealthCheckResult{
		OK:             true,
		MedianConf:     med,
		StdevConf:      std,
		ResponseTimeMS: elapsedMS,
		WarmupSuccess:  true,
	}
}

// InvalidateHealthCache forces the next Healthcheck to re-probe.
func (g *Gate) InvalidateHealthCache() {
	g.mu.Lock()
	g.cached = nil
	g.mu.Unlock()
}

// Decide routes candidates through the configured mode. STRICT returns
// *AIUnhealthyError on any model problem; the other modes degrade.
func (g *Gate) Decide(ctx context.Context, candidates []*CandidateItem, collector *MetricsCollector) (*GateDecision, error) {
	var decision *GateDecision
	var err error

	switch strings.ToUpper(g.cfg.Mode) {
	case GateModeStrict:
		decision, err = g.decideStrict(ctx, candidates)
	case GateModeFirst:
		decision = g.decideFirst(ctx, candidates)
	case GateModeHeuristic:
		decision = heuristicFallback("heuristic_mode_configured")
	default: // HYBRID
		decision = g.decideHybrid(ctx, candidates)
	}
	if err != nil {
		if collector != nil {
			collector.LogAIGateHealth(ModeHeuristicOnly, 0)
			collector.LogError("ai_unhealthy", true)
		}
		return nil, err
	}

	if collector != nil {
		health := g.Healthcheck(ctx)
		score := 0.0
		if health.OK {
			score = health.MedianConf
		}
		collector.LogAIGateHealth(decision.Mode, score)
		collector.LogGateDecision(decision.Mode)
	}
	return decision, nil
}

func (g *Gate) decideStrict(ctx context.Context, candidates []*CandidateItem) (*GateDecision, error) {
	health := g.Healthcheck(ctx)
	if !health.OK {
		return nil, &AIUnhealthyError{Reason: health.Reason}
	}
	accepted, weak, err := g.gateWithModel(ctx, candidates)
	if err != nil {
		return nil, &AIUnhealthyError{Reason: "predict_failed", Err: err}
	}
	return &GateDecision{Mode: ModeAIStrict, Accepted: accepted, Weak: weak}, nil
}

func (g *Gate) decideFirst(ctx context.Context, candidates []*CandidateItem) *GateDecision {
	health := g.Healthcheck(ctx)
	if !health.OK {
		return heuristicFallback("ai_unhealthy_fallback:" + health.Reason)
	}
	accepted, weak, err := g.gateWithModel(ctx, candidates)
	if err != nil {
		return heuristicFallback("ai_predict_fallback")
	}
	return &GateDecision{Mode: ModeAIFirst, Accepted: accepted, Weak: weak}
}

// decideHybrid fuses AI and heuristic admissions. The mode is always
// HYBRID_FUSION even when the AI side degrades; the reason carries that.
func (g *Gate) decideHybrid(ctx context.Context, candidates []*CandidateItem) *GateDecision {
	heurAccepted, heurWeak := partitionByStatus(candidates)

	health := g.Healthcheck(ctx)
	if !health.OK {
		return &GateDecision{
			Mode:     ModeHybridFusion,
			Accepted: heurAccepted,
			Weak:     heurWeak,
			Reason:   "ai_degraded:" + health.Reason,
		}
	}

	aiAccepted, aiWeak, err := g.gateWithModel(ctx, candidates)
	if err != nil {
		return &GateDecision{
			Mode:     ModeHybridFusion,
			Accepted: heurAccepted,
			Weak:     heurWeak,
			Reason:   "ai_degraded:predict_failed",
		}
	}

	return &GateDecision{
		Mode:     ModeHybridFusion,
		Accepted: mergeCandidates(heurAccepted, aiAccepted),
		Weak:     mergeCandidates(heurWeak, aiWeak),
	}
}

// heuristicFallback keeps all candidates in their pre-gate routing state:
// nothing is admitted or weakened, downstream mappers see routing output as-is.
func heuristicFallback(reason string) *GateDecision {
	return &GateDecision{Mode: ModeHeuristicOnly, Reason: reason}
}

// partitionByStatus admits candidates on their routing status alone, the
// heuristic half of hybrid fusion.
func partitionByStatus(candidates []*CandidateItem) (accepted, weak []*CandidateItem) {
	for _, c := range candidates {
		switch {
		case c.Status == StatusOK && c.ItemType == "experience":
			accepted = append(accepted, c)
		case c.Status == StatusUncertain:
			weak = append(weak, c)
		}
	}
	return accepted, weak
}

// gateWithModel partitions candidates by model confidence: hard threshold
// admits, the soft band marks weak, below soft drops silently.
func (g *Gate) gateWithModel(ctx context.Context, candidates []*CandidateItem) (accepted, weak []*CandidateItem, err error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	preds, err := g.model.Predict(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	if len(preds) != len(candidates) {
		return nil, nil, fmt.Errorf("gate: %d predictions for %d candidates", len(preds), len(candidates))
	}
	for i, p := range preds {
		conf := p.Confidence()
		switch {
		case conf >= g.cfg.HardThreshold:
			accepted = append(accepted, candidates[i])
		case conf >= g.cfg.SoftThreshold:
			weak = append(weak, candidates[i])
		}
	}
	return accepted, weak, nil
}

// mergeCandidates unions two candidate lists, preserving order, deduped by pointer.
func mergeCandidates(a, b []*CandidateItem) []*CandidateItem {
	seen := map[*CandidateItem]bool{}
	var out []*CandidateItem
	for _, c := range append(append([]*CandidateItem{}, a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func stdev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}
