package cv

import (
	"fmt"
	"sync"
	"time"
)

// Success criteria for a document-level extraction run.
const (
	MinQualityScore   = 0.75
	MinAssocRate      = 0.70
	MinExpCoverage    = 0.25
	MinEduKeepRate    = 0.20
	MaxOverlapsAfter  = 0
)

// ExtractionMetrics aggregates the per-document quality counters.
type ExtractionMetrics struct {
	QualityScore float64 `json:"quality_score"`
	AssocRate    float64 `json:"assoc_rate"`
	ExpCoverage  float64 `json:"exp_coverage"`
	EduKeepRate  float64 `json:"edu_keep_rate"`

	PatternDiversity float64 `json:"pattern_diversity"`
	ForeignDensity   float64 `json:"foreign_density"`

	BoundaryOverlapCountBefore int `json:"boundary_overlap_count_before"`
	BoundaryOverlapCountAfter  int `json:"boundary_overlap_count_after"`

	ReclassToCert      int `json:"reclass_to_cert"`
	ReclassToInterests int `json:"reclass_to_interests"`
	ReclassToEducation int `json:"reclass_to_education"`
	ReclassToProjects  int `json:"reclass_to_projects"`

	EduDedupCounts         []int `json:"edu_dedup_counts,omitempty"`
	EduOscillationDetected bool  `json:"edu_oscillation_detected"`

	ExpGatePassRate            float64 `json:"exp_gate_pass_rate"`
	AIGateHealthScore          float64 `json:"ai_gate_health_score"`
	HeuristicFallbackTriggered bool    `json:"heuristic_fallback_triggered"`
	ExtractionMode             string  `json:"extraction_mode"`

	TotalSectionsFound          int     `json:"total_sections_found"`
	TotalItemsExtracted         int     `json:"total_items_extracted"`
	TotalProcessingTimeSeconds  float64 `json:"total_processing_time_seconds"`

	CriticalErrors      []string `json:"critical_errors,omitempty"`
	WarningsCount       int      `json:"warnings_count"`
	PIILeakageDetected  bool     `json:"pii_leakage_detected"`
}

// MeetsSuccessCriteria reports whether the run clears every quality bar.
func (m *ExtractionMetrics) MeetsSuccessCriteria() bool {
	return len(m.FailureReasons()) == 0
}

// FailureReasons lists every unmet success criterion.
func (m *ExtractionMetrics) FailureReasons() []string {
	var reasons []string
	if m.QualityScore < MinQualityScore {
		reasons = append(reasons, fmt.Sprintf("quality_score=%.2f < %.2f", m.QualityScore, MinQualityScore))
	}
	if m.AssocRate < MinAssocRate {
		reasons = append(reasons, fmt.Sprintf("assoc_rate=%.2f < %.2f", m.AssocRate, MinAssocRate))
	}
	if m.ExpCoverage < MinExpCoverage {
		reasons = append(reasons, fmt.Sprintf("exp_coverage=%.2f < %.2f", m.ExpCoverage, MinExpCoverage))
	}
	if m.EduKeepRate < MinEduKeepRate {
		reasons = append(reasons, fmt.Sprintf("edu_keep_rate=%.2f < %.2f", m.EduKeepRate, MinEduKeepRate))
	}
	if m.BoundaryOverlapCountAfter > MaxOverlapsAfter {
		reasons = append(reasons, fmt.Sprintf("boundary_overlap_count_after=%d != 0", m.BoundaryOverlapCountAfter))
	}
	if m.PIILeakageDetected {
		reasons = append(reasons, "pii_leakage_detected")
	}
	return reasons
}

// DecisionLog is one audit entry: which rule fired, with which scores,
// against which thresholds, and what it decided.
type DecisionLog struct {
	DocID          string             `json:"doc_id"`
	Page           int                `json:"page"`
	BlockID        string             `json:"block_id,omitempty"`
	RuleID         string             `json:"rule_id"`
	Scores         map[string]float64 `json:"scores,omitempty"`
	Thresholds     map[string]float64 `json:"thresholds,omitempty"`
	Decision       string             `json:"decision"`
	Reason         string             `json:"reason,omitempty"`
	Timestamp      string             `json:"timestamp"`
	ExtractionMode string             `json:"extraction_mode,omitempty"`
}

// ExportReport is the audit contract: everything a run decided, exportable
// as a single JSON document.
type ExportReport struct {
	DocID              string            `json:"doc_id"`
	Metrics            ExtractionMetrics `json:"metrics"`
	DecisionLogs       []DecisionLog     `json:"decision_logs"`
	GateDecisions      map[string]int    `json:"gate_decisions"`
	RoutingDecisions   map[string]int    `json:"routing_decisions"`
	ErrorCounts        map[string]int    `json:"error_counts"`
	ExportTimestamp    string            `json:"export_timestamp"`
	SuccessCriteriaMet bool              `json:"success_criteria_met"`
	FailureReasons     []string          `json:"failure_reasons,omitempty"`
}

// MetricsCollector accumulates decisions and metrics for one document.
// Safe for concurrent use.
type MetricsCollector struct {
	mu               sync.Mutex
	docID            string
	metrics          ExtractionMetrics
	decisionLogs     []DecisionLog
	gateDecisions    map[string]int
	routingDecisions map[string]int
	errorCounts      map[string]int
	started          time.Time
}

// NewMetricsCollector creates a collector for one document.
func NewMetricsCollector(docID string) *MetricsCollector {
	return &MetricsCollector{
		docID:            docID,
		gateDecisions:    map[string]int{},
		routingDecisions: map[string]int{},
		errorCounts:      map[string]int{},
		started:          time.Now(),
	}
}

// DocID returns the document this collector belongs to.
func (c *MetricsCollector) DocID() string { return c.docID }

// LogDecision appends one audit entry, stamping doc ID, timestamp and the
// current extraction mode.
func (c *MetricsCollector) LogDecision(d DecisionLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d.DocID = c.docID
	d.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if d.ExtractionMode == "" {
		d.ExtractionMode = c.metrics.ExtractionMode
	}
	c.decisionLogs = append(c.decisionLogs, d)
}

// LogRoutingDecision counts one from→to routing transition.
func (c *MetricsCollector) LogRoutingDecision(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routingDecisions[from+"→"+to]++
	switch to {
	case DecisionRoutedToEducation:
		c.metrics.ReclassToEducation++
	case "certifications":
		c.metrics.ReclassToCert++
	case "interests":
		c.metrics.ReclassToInterests++
	case "projects":
		c.metrics.ReclassToProjects++
	}
}

// LogGateDecision counts one AI-gate outcome by mode.
func (c *MetricsCollector) LogGateDecision(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gateDecisions[mode]++
}

// LogBoundaryAnalysis records overlap counts before and after normalization.
func (c *MetricsCollector) LogBoundaryAnalysis(before, after int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.BoundaryOverlapCountBefore = before
	c.metrics.BoundaryOverlapCountAfter = after
}

// LogEducationDedup records one dedup pass result and re-checks for
// oscillation: the consolidation count bouncing between values instead of
// converging.
func (c *MetricsCollector) LogEducationDedup(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.EduDedupCounts = append(c.metrics.EduDedupCounts, count)
	c.metrics.EduOscillationDetected = detectOscillation(c.metrics.EduDedupCounts)
}

// detectOscillation looks at the last three dedup counts: an A,B,A bounce
// means consolidation is alternating between two states instead of converging.
func detectOscillation(counts []int) bool {
	if len(counts) < 3 {
		return false
	}
	last := counts[len(counts)-3:]
	return last[0] == last[2] && last[0] != last[1]
}

// LogAIGateHealth records the gate's mode and health score. Falling back to
// heuristics flips the fallback flag.
func (c *MetricsCollector) LogAIGateHealth(mode string, healthScore float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.ExtractionMode = mode
	c.metrics.AIGateHealthScore = healthScore
	if mode == ModeHeuristicOnly {
		c.metrics.HeuristicFallbackTriggered = true
	}
}

// LogError counts an error by kind; critical errors also land in the
// metrics error list.
func (c *MetricsCollector) LogError(kind string, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCounts[kind]++
	if critical {
		c.metrics.CriticalErrors = append(c.metrics.CriticalErrors, kind)
	}
}

// LogWarnings adds to the document warning count.
func (c *MetricsCollector) LogWarnings(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.WarningsCount += n
}

// SetCounts records section/item totals.
func (c *MetricsCollector) SetCounts(sections, items int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.TotalSectionsFound = sections
	c.metrics.TotalItemsExtracted = items
}

// CheckPIILeakage scans output text for unmasked PII and records the result.
func (c *MetricsCollector) CheckPIILeakage(text string) {
	leaks := ValidateNoPIILeakage(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(leaks) > 0 {
		c.metrics.PIILeakageDetected = true
		for _, l := range leaks {
			c.errorCounts["pii_"+l]++
		}
	}
}

// CalculateFinalMetrics derives the composite quality score from the run's
// component rates.
func (c *MetricsCollector) CalculateFinalMetrics(assocRate, expCoverage, eduKeepRate, gatePassRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.AssocRate = assocRate
	c.metrics.ExpCoverage = expCoverage
	c.metrics.EduKeepRate = eduKeepRate
	c.metrics.ExpGatePassRate = gatePassRate
	c.metrics.QualityScore = 0.3*assocRate + 0.3*expCoverage + 0.2*eduKeepRate + 0.2*gatePassRate
	c.metrics.TotalProcessingTimeSeconds = time.Since(c.started).Seconds()
}

// Metrics returns a snapshot of the current metrics.
func (c *MetricsCollector) Metrics() ExtractionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Export assembles the full audit report.
func (c *MetricsCollector) Export() ExportReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metrics.TotalProcessingTimeSeconds == 0 {
		c.metrics.TotalProcessingTimeSeconds = time.Since(c.started).Seconds()
	}
	logs := append([]DecisionLog(nil), c.decisionLogs...)
	gate := copyCounts(c.gateDecisions)
	routing := copyCounts(c.routingDecisions)
	errs := copyCounts(c.errorCounts)
	return ExportReport{
		DocID:              c.docID,
		Metrics:            c.metrics,
		DecisionLogs:       logs,
		GateDecisions:      gate,
		RoutingDecisions:   routing,
		ErrorCounts:        errs,
		ExportTimestamp:    time.Now().UTC().Format(time.RFC3339),
		SuccessCriteriaMet: c.metrics.MeetsSuccessCriteria(),
		FailureReasons:     c.metrics.FailureReasons(),
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CollectorRegistry tracks active per-document collectors.
type CollectorRegistry struct {
	mu         sync.Mutex
	collectors map[string]*MetricsCollector
}

// NewCollectorRegistry creates an empty registry.
func NewCollectorRegistry() *CollectorRegistry {
	return &CollectorRegistry{collectors: map[string]*MetricsCollector{}}
}

// Get returns the collector for docID, creating it if needed.
func (r *CollectorRegistry) Get(docID string) *MetricsCollector {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.collectors[docID]; ok {
		return c
	}
	c := NewMetricsCollector(docID)
	r.collectors[docID] = c
	return c
}

// Finalize removes the collector for docID and returns its export.
// Returns nil when no collector exists.
func (r *CollectorRegistry) Finalize(docID string) *ExportReport {
	r.mu.Lock()
	c, ok := r.collectors[docID]
	if ok {
		delete(r.collectors, docID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	report := c.Export()
	return &report
}

// Active returns the number of live collectors.
func (r *CollectorRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.collectors)
}
