package cv

import (
	"strings"
	"testing"
)

func passingMetrics() ExtractionMetrics {
	return ExtractionMetrics{
		QualityScore: 0.80,
		AssocRate:    0.75,
		ExpCoverage:  0.30,
		EduKeepRate:  0.25,
	}
}

func TestMeetsSuccessCriteria(t *testing.T) {
	m := passingMetrics()
	if !m.MeetsSuccessCriteria() {
		t.Fatalf("expected success, reasons: %v", m.FailureReasons())
	}
}

func TestFailureReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ExtractionMetrics)
		want   string
	}{
		{
			name:   "low quality",
			mutate: func(m *ExtractionMetrics) { m.QualityScore = 0.5 },
			want:   "quality_score=0.50 < 0.75",
		},
		{
			name:   "low assoc rate",
			mutate: func(m *ExtractionMetrics) { m.AssocRate = 0.4 },
			want:   "assoc_rate=0.40 < 0.70",
		},
		{
			name:   "overlaps remain",
			mutate: func(m *ExtractionMetrics) { m.BoundaryOverlapCountAfter = 2 },
			want:   "boundary_overlap_count_after=2 != 0",
		},
		{
			name:   "pii leak",
			mutate: func(m *ExtractionMetrics) { m.PIILeakageDetected = true },
			want:   "pii_leakage_detected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := passingMetrics()
			tt.mutate(&m)
			reasons := m.FailureReasons()
			if len(reasons) != 1 || reasons[0] != tt.want {
				t.Errorf("FailureReasons() = %v, want [%q]", reasons, tt.want)
			}
			if m.MeetsSuccessCriteria() {
				t.Error("MeetsSuccessCriteria should be false")
			}
		})
	}
}

func TestDetectOscillation(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   bool
	}{
		{"too short", []int{3, 2}, false},
		{"converged", []int{5, 3, 3}, false},
		{"stable", []int{3, 3, 3}, false},
		{"bouncing", []int{3, 2, 3}, true},
		{"bouncing long history", []int{5, 4, 3, 2, 3}, true},
		{"still shrinking", []int{5, 4, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectOscillation(tt.counts); got != tt.want {
				t.Errorf("detectOscillation(%v) = %v, want %v", tt.counts, got, tt.want)
			}
		})
	}
}

func TestCollectorRoutingDecisions(t *testing.T) {
	c := NewMetricsCollector("doc-1")
	c.LogRoutingDecision("experience", DecisionRoutedToEducation)
	c.LogRoutingDecision("experience", DecisionAccepted)
	c.LogRoutingDecision("experience", DecisionRoutedToEducation)

	report := c.Export()
	if report.RoutingDecisions["experience→routed_to_education"] != 2 {
		t.Errorf("routing counts = %v", report.RoutingDecisions)
	}
	if report.Metrics.ReclassToEducation != 2 {
		t.Errorf("ReclassToEducation = %d, want 2", report.Metrics.ReclassToEducation)
	}
}

func TestCollectorDecisionLogStamping(t *testing.T) {
	c := NewMetricsCollector("doc-2")
	c.LogAIGateHealth(ModeHybridFusion, 0.8)
	c.LogDecision(DecisionLog{RuleID: "triad_binding_v1", Decision: DecisionAccepted})

	report := c.Export()
	if len(report.DecisionLogs) != 1 {
		t.Fatalf("expected 1 decision log, got %d", len(report.DecisionLogs))
	}
	d := report.DecisionLogs[0]
	if d.DocID != "doc-2" {
		t.Errorf("DocID = %q, want doc-2", d.DocID)
	}
	if d.Timestamp == "" {
		t.Error("timestamp not stamped")
	}
	if d.ExtractionMode != ModeHybridFusion {
		t.Errorf("ExtractionMode = %q, want %s", d.ExtractionMode, ModeHybridFusion)
	}
}

func TestCollectorHeuristicFallbackFlag(t *testing.T) {
	c := NewMetricsCollector("doc-3")
	c.LogAIGateHealth(ModeHeuristicOnly, 0)

	m := c.Metrics()
	if !m.HeuristicFallbackTriggered {
		t.Error("heuristic fallback flag not set")
	}
	if m.ExtractionMode != ModeHeuristicOnly {
		t.Errorf("ExtractionMode = %q", m.ExtractionMode)
	}
}

func TestCollectorQualityScore(t *testing.T) {
	c := NewMetricsCollector("doc-4")
	c.CalculateFinalMetrics(0.8, 0.4, 0.3, 0.9)

	m := c.Metrics()
	want := 0.3*0.8 + 0.3*0.4 + 0.2*0.3 + 0.2*0.9
	if diff := m.QualityScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("QualityScore = %.4f, want %.4f", m.QualityScore, want)
	}
	if m.TotalProcessingTimeSeconds < 0 {
		t.Error("processing time must be non-negative")
	}
}

func TestCollectorPIICheck(t *testing.T) {
	c := NewMetricsCollector("doc-5")
	c.CheckPIILeakage("contact: jean.dupont@example.com")

	report := c.Export()
	if !report.Metrics.PIILeakageDetected {
		t.Fatal("email leak not detected")
	}
	if report.ErrorCounts["pii_email"] != 1 {
		t.Errorf("error counts = %v", report.ErrorCounts)
	}
	if report.SuccessCriteriaMet {
		t.Error("pii leak must fail success criteria")
	}

	clean := NewMetricsCollector("doc-6")
	clean.CheckPIILeakage("masked [EMAIL:a1b2c3d4] only")
	if clean.Metrics().PIILeakageDetected {
		t.Error("masked text flagged as leak")
	}
}

func TestCollectorExportContract(t *testing.T) {
	c := NewMetricsCollector("doc-7")
	c.LogBoundaryAnalysis(3, 0)
	c.LogGateDecision(ModeAIStrict)
	c.LogError("fetch_failed", false)
	c.LogError("ai_unhealthy", true)
	c.LogWarnings(4)
	c.SetCounts(6, 12)

	report := c.Export()
	if report.DocID != "doc-7" {
		t.Errorf("DocID = %q", report.DocID)
	}
	if report.ExportTimestamp == "" {
		t.Error("export timestamp missing")
	}
	if report.Metrics.BoundaryOverlapCountBefore != 3 || report.Metrics.BoundaryOverlapCountAfter != 0 {
		t.Errorf("overlap counts = %d/%d", report.Metrics.BoundaryOverlapCountBefore, report.Metrics.BoundaryOverlapCountAfter)
	}
	if report.GateDecisions[ModeAIStrict] != 1 {
		t.Errorf("gate decisions = %v", report.GateDecisions)
	}
	if report.ErrorCounts["fetch_failed"] != 1 || report.ErrorCounts["ai_unhealthy"] != 1 {
		t.Errorf("error counts = %v", report.ErrorCounts)
	}
	if len(report.Metrics.CriticalErrors) != 1 || report.Metrics.CriticalErrors[0] != "ai_unhealthy" {
		t.Errorf("critical errors = %v", report.Metrics.CriticalErrors)
	}
	if report.Metrics.WarningsCount != 4 {
		t.Errorf("warnings = %d", report.Metrics.WarningsCount)
	}
	if report.Metrics.TotalSectionsFound != 6 || report.Metrics.TotalItemsExtracted != 12 {
		t.Errorf("counts = %d/%d", report.Metrics.TotalSectionsFound, report.Metrics.TotalItemsExtracted)
	}
	if report.SuccessCriteriaMet {
		// Rates were never calculated, so the quality bars are unmet.
		t.Error("expected failure with zero rates")
	}
	found := false
	for _, r := range report.FailureReasons {
		if strings.HasPrefix(r, "quality_score=") {
			found = true
		}
	}
	if !found {
		t.Errorf("failure reasons = %v", report.FailureReasons)
	}
}

func TestCollectorEducationDedup(t *testing.T) {
	c := NewMetricsCollector("doc-8")
	c.LogEducationDedup(5)
	c.LogEducationDedup(3)
	c.LogEducationDedup(5)

	m := c.Metrics()
	if !m.EduOscillationDetected {
		t.Errorf("oscillation not detected over %v", m.EduDedupCounts)
	}
}

func TestCollectorRegistry(t *testing.T) {
	r := NewCollectorRegistry()

	a := r.Get("doc-a")
	if r.Get("doc-a") != a {
		t.Error("Get should return the same collector per doc")
	}
	if r.Active() != 1 {
		t.Errorf("Active = %d, want 1", r.Active())
	}

	report := r.Finalize("doc-a")
	if report == nil || report.DocID != "doc-a" {
		t.Errorf("Finalize report = %+v", report)
	}
	if r.Active() != 0 {
		t.Errorf("Active after finalize = %d, want 0", r.Active())
	}
	if r.Finalize("doc-a") != nil {
		t.Error("second finalize should return nil")
	}
}
