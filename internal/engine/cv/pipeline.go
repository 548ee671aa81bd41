package cv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// Options bundles every stage's configuration for one pipeline.
type Options struct {
	Guard      GuardConfig
	TriSignal  TriSignalConfig
	Triad      TriadConfig
	Gate       GateConfig
	Internship InternshipConfig
	Structure  StructureConfig
	// MergeMaxGap is the line gap under which same-type boundaries merge.
	MergeMaxGap int
	Lexicon     *Lexicon
	Model       Model
	Tokenizer   Tokenizer
	Registry    *CollectorRegistry
}

// DefaultOptions returns production defaults with no model attached.
func DefaultOptions() Options {
	return Options{
		Guard:       DefaultGuardConfig(),
		TriSignal:   DefaultTriSignalConfig(),
		Triad:       DefaultTriadConfig(),
		Gate:        DefaultGateConfig(),
		Internship:  DefaultInternshipConfig(),
		Structure:   DefaultStructureConfig(),
		MergeMaxGap: DefaultMergeMaxGap,
	}
}

// ExtractionResult is the output of one document run.
type ExtractionResult struct {
	Candidates []*CandidateItem `json:"candidates"`
	Gate       *GateDecision    `json:"gate"`
	Report     *ExportReport    `json:"report"`
}

// Pipeline runs the full extraction flow for one document at a time.
// A single document runs on a single goroutine; the collector registry and
// the gate's health cache are the only shared state.
type Pipeline struct {
	guards      *BoundaryGuards
	triSignal   *TriSignalValidator
	mapper      *ParserMapper
	gate        *Gate
	internship  *InternshipHandler
	structure   *StructureAnalyzer
	mergeMaxGap int
	registry    *CollectorRegistry
}

// NewPipeline wires all stages from options.
func NewPipeline(opts Options) *Pipeline {
	if opts.Lexicon == nil {
		opts.Lexicon = DefaultLexicon()
	}
	if opts.Registry == nil {
		opts.Registry = NewCollectorRegistry()
	}
	if opts.MergeMaxGap <= 0 {
		opts.MergeMaxGap = DefaultMergeMaxGap
	}
	guards := NewBoundaryGuards(opts.Guard)
	return &Pipeline{
		guards:      guards,
		triSignal:   NewTriSignalValidator(opts.TriSignal),
		mapper:      NewParserMapper(opts.Triad, opts.Lexicon),
		gate:        NewGate(opts.Gate, opts.Model, opts.Tokenizer),
		internship:  NewInternshipHandler(opts.Internship, opts.Lexicon),
		structure:   NewStructureAnalyzer(opts.Structure, guards),
		mergeMaxGap: opts.MergeMaxGap,
		registry:    opts.Registry,
	}
}

// Gate exposes the gate for health tooling.
func (p *Pipeline) Gate() *Gate { return p.gate }

// Registry exposes the collector registry for report tooling.
func (p *Pipeline) Registry() *CollectorRegistry { return p.registry }

// ExtractDocument runs structure analysis, boundary normalization, triad
// routing, AI gating and internship rebinding over one document.
// boundaries accepts any NormalizeBoundaries input shape; sections are
// optional layout blocks that refine or replace missing boundaries.
// In STRICT mode an unhealthy model aborts with *AIUnhealthyError; a
// low-quality run returns normally with success_criteria_met=false.
func (p *Pipeline) ExtractDocument(ctx context.Context, docID string, lines []string, boundaries any, sections []Section) (*ExtractionResult, error) {
	engine.IncrExtractRequests()
	collector := p.registry.Get(docID)

	if len(sections) > 0 {
		sections = p.structure.Analyze(sections, collector)
		if boundaries == nil {
			boundaries = boundariesFromSections(sections)
		}
	}

	bs, stats := NormalizeBoundariesGap(boundaries, p.mergeMaxGap)
	collector.LogBoundaryAnalysis(stats.OverlapsBefore, stats.OverlapsAfter)
	bs = ValidateBoundaryIndices(bs, len(lines))

	candidates := p.sliceCandidates(lines, bs, collector)

	var expCandidates []*CandidateItem
	for _, c := range candidates {
		p.mapper.MapCandidate(c, collector)
		if c.ItemType == "experience" {
			expCandidates = append(expCandidates, c)
		}
	}

	decision, err := p.gate.Decide(ctx, expCandidates, collector)
	if err != nil {
		p.registry.Finalize(docID)
		return nil, fmt.Errorf("extract %s: %w", docID, err)
	}

	p.internship.Process(candidates, lines, collector)

	p.finalizeMetrics(lines, bs, candidates, expCandidates, decision, collector)

	report := p.registry.Finalize(docID)
	slog.Info("document extracted",
		slog.String("doc_id", docID),
		slog.Int("candidates", len(candidates)),
		slog.String("mode", decision.Mode),
		slog.Bool("success", report.SuccessCriteriaMet),
	)
	return &ExtractionResult{Candidates: candidates, Gate: decision, Report: report}, nil
}

// boundariesFromSections synthesizes boundaries from analyzed sections.
// Quarantined sections are excluded from extraction entirely.
func boundariesFromSections(sections []Section) []Boundary {
	var bs []Boundary
	for _, s := range sections {
		if s.Flags.IsQuarantined {
			continue
		}
		t := s.Flags.SectionKindGuess
		if t == "" {
			t = "unknown"
		}
		bs = append(bs, Boundary{Start: s.StartLine, End: s.StartLine + len(s.Lines), SectionType: t})
	}
	return bs
}

// sliceCandidates cuts one candidate per boundary, claiming lines in the
// ledger and applying content validation and expansion guards.
func (p *Pipeline) sliceCandidates(lines []string, bs []Boundary, collector *MetricsCollector) []*CandidateItem {
	ledger := NewResidualLedger()
	var candidates []*CandidateItem

	for _, b := range bs {
		if ok, issues := ValidateSectionContent(lines, b); !ok {
			for _, issue := range issues {
				if issue == "contact_pollution" {
					b = RequestBoundaryCorrection(lines, b)
					collector.LogError("boundary_corrected_contact", false)
				} else {
					collector.LogError(issue, false)
				}
			}
			if b.End <= b.Start {
				continue
			}
		}

		if conflicts := ledger.Claim(b.SectionType, b.Start, b.End); len(conflicts) > 0 {
			collector.LogError("ledger_conflict", false)
			slog.Warn("line ownership conflict",
				slog.String("section", b.SectionType),
				slog.Int("lines", len(conflicts)),
			)
		}

		end := b.End
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[b.Start:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		itemType := "other"
		switch strings.ToLower(b.SectionType) {
		case "experience", "work":
			itemType = "experience"
		case "education", "formation":
			itemType = "education"
		}

		item := &CandidateItem{
			Text:            text,
			ItemType:        itemType,
			OriginalSection: b.SectionType,
			SourceLine:      b.Start,
		}

		if itemType == "experience" {
			if terminate, reasons := p.guards.ShouldTerminateWindowExpansion(lines, b.Start, end, b.Start, 0, 0); terminate {
				item.Warnings = append(item.Warnings, reasons...)
			}
			tri := p.triSignal.ValidateTriSignalLinkage(lines, b.Start, nil)
			if !tri.Passes {
				item.Warnings = append(item.Warnings, "tri_signal_failed")
				collector.LogDecision(DecisionLog{
					RuleID:   "tri_signal_v1",
					Scores:   map[string]float64{"signals": float64(tri.Signals)},
					Decision: "flagged",
					Reason:   "insufficient_linked_evidence",
				})
			}
		}

		candidates = append(candidates, item)
	}
	return candidates
}

// finalizeMetrics derives the document-level rates and runs the PII check
// over everything the report will carry.
func (p *Pipeline) finalizeMetrics(lines []string, bs []Boundary, candidates, expCandidates []*CandidateItem, decision *GateDecision, collector *MetricsCollector) {
	totalWarnings := 0
	assocOK := 0
	eduItems := 0
	for _, c := range candidates {
		totalWarnings += len(c.Warnings)
		if c.Triad.AssocScore >= p.mapper.cfg.MinAssoc {
			assocOK++
		}
		if c.ItemType == "education" {
			eduItems++
		}
	}
	collector.LogWarnings(totalWarnings)

	assocRate := 0.0
	eduKeepRate := 0.0
	if len(candidates) > 0 {
		assocRate = float64(assocOK) / float64(len(candidates))
		eduKeepRate = float64(eduItems) / float64(len(candidates))
	}

	expLines := 0
	for _, b := range bs {
		if t := strings.ToLower(b.SectionType); t == "experience" || t == "work" {
			expLines += b.Len()
		}
	}
	expCoverage := 0.0
	if len(lines) > 0 {
		expCoverage = float64(expLines) / float64(len(lines))
	}

	gatePassRate := 0.0
	if len(expCandidates) > 0 {
		gatePassRate = float64(len(decision.Accepted)) / float64(len(expCandidates))
	}

	collector.SetCounts(len(bs), len(candidates))
	collector.CalculateFinalMetrics(assocRate, expCoverage, eduKeepRate, gatePassRate)

	// The report must leave the pipeline PII-clean: reasons and warnings
	// are the only free-text it carries.
	var sb strings.Builder
	for _, c := range candidates {
		for _, w := range c.Warnings {
			sb.WriteString(w)
			sb.WriteByte('\n')
		}
	}
	collector.CheckPIILeakage(sb.String())
}
