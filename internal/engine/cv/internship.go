package cv

import (
	"regexp"
	"sort"
	"strings"
)

// InternshipConfig controls proximity-based employer rebinding.
type InternshipConfig struct {
	MinRebindConfidence float64 // below this, the item routes to education
	ProximityMaxLines   int     // lines scanned either side of the item
}

// DefaultInternshipConfig mirrors the tuned production thresholds.
func DefaultInternshipConfig() InternshipConfig {
	return InternshipConfig{MinRebindConfidence: 0.60, ProximityMaxLines: 2}
}

var legalSuffixRe = regexp.MustCompile(`(?i)\b(SARL|SASU|SAS|SA|Inc\.?|Ltd\.?|LLC|Corp\.?|GmbH)\b`)

// employerNameRe shares the triad scorer's org-shape vocabulary, with
// \p{L}\p{N} classes so accented names survive RE2's ASCII-only \w.
var employerNameRe = []*regexp.Regexp{
	regexp.MustCompile(`([A-ZÀ-Ý][\p{L}\p{N}&.'-]*(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]*)*)\s+(?:SARL|SASU|SAS|SA|Inc\.?|Ltd\.?|LLC|Corp\.?|GmbH)\b`),
	regexp.MustCompile(`(?:chez|Chez|at|At)\s+([A-ZÀ-Ý][\p{L}\p{N}&.'-]*(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]*)*)`),
	regexp.MustCompile(`([A-ZÀ-Ý][\p{L}\p{N}&.'-]*(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]*)*)\s+(?:company|société|societe|entreprise|group|groupe)\b`),
	regexp.MustCompile(`([A-ZÀ-Ý][\p{L}\p{N}&.'-]+(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]+)+)`),
}

var contextIndicatorRe = regexp.MustCompile(`(?i)\b(chez|at|pour|for|with)\b`)

// InternshipHandler rebinds internship items to the actual employer found
// near them, or routes them to education when no credible employer exists.
type InternshipHandler struct {
	cfg InternshipConfig
	lex *Lexicon
}

// NewInternshipHandler creates a handler. A nil lexicon uses defaults.
func NewInternshipHandler(cfg InternshipConfig, lex *Lexicon) *InternshipHandler {
	if cfg.ProximityMaxLines == 0 {
		cfg = DefaultInternshipConfig()
	}
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &InternshipHandler{cfg: cfg, lex: lex}
}

// IsInternship reports whether an item is an internship bound to a school
// rather than an employer. An internship keyword alone is not enough: a
// stage at a named company is a normal experience and must not be dragged
// into rebinding. Co-occurrence with a school lexeme, or an explicit
// internship item type, is required.
func (h *InternshipHandler) IsInternship(item *CandidateItem) bool {
	if !h.lex.HasInternshipTerm(item.Text) {
		return false
	}
	if h.lex.HasSchoolLexeme(item.Text) || h.lex.HasSchoolLexeme(item.Fields.Organization) {
		return true
	}
	it := strings.ToLower(item.ItemType)
	return strings.Contains(it, "internship") || strings.Contains(it, "stage")
}

// Process runs rebinding for every internship item in the batch.
// Returns the tracking records for the items that were internships.
func (h *InternshipHandler) Process(items []*CandidateItem, lines []string, collector *MetricsCollector) []InternshipCandidate {
	var out []InternshipCandidate
	for _, item := range items {
		if !h.IsInternship(item) {
			continue
		}
		out = append(out, h.Rebind(item, lines, collector))
	}
	return out
}

// Rebind finds potential employers near the item and either rebinds the
// item's organization or routes it to education.
func (h *InternshipHandler) Rebind(item *CandidateItem, lines []string, collector *MetricsCollector) InternshipCandidate {
	ic := InternshipCandidate{
		Item:        item,
		OriginalOrg: item.Fields.Organization,
	}

	ic.PotentialEmployers = h.findPotentialEmployers(lines, item.SourceLine)

	if len(ic.PotentialEmployers) == 0 {
		h.routeToEducation(item, &ic, collector)
		return ic
	}

	best := ic.PotentialEmployers[0]
	if best.Confidence < h.cfg.MinRebindConfidence {
		h.routeToEducation(item, &ic, collector)
		return ic
	}

	item.Fields.Organization = best.Name
	item.Fields.Company = best.Name
	item.ItemType = "experience"
	item.Warnings = append(item.Warnings, "internship_rebind_to_"+best.Name)
	ic.RebindDecision = "rebound"
	ic.RebindTarget = best.Name
	ic.RebindConfidence = best.Confidence

	if collector != nil {
		collector.LogRoutingDecision("internship", "experience")
		collector.LogDecision(DecisionLog{
			RuleID:   "internship_rebind_v1",
			Scores:   map[string]float64{"rebind_confidence": best.Confidence},
			Decision: "rebound",
			Reason:   "employer_within_proximity",
		})
	}
	return ic
}

func (h *InternshipHandler) routeToEducation(item *CandidateItem, ic *InternshipCandidate, collector *MetricsCollector) {
	item.ItemType = "education"
	item.Warnings = append(item.Warnings, "internship_routed_to_education")
	item.Fields.Tags = append(item.Fields.Tags, "work_integrated_learning")
	ic.RebindDecision = "routed_to_education"

	if collector != nil {
		collector.LogRoutingDecision("internship", DecisionRoutedToEducation)
		collector.LogDecision(DecisionLog{
			RuleID:   "internship_rebind_v1",
			Decision: DecisionRoutedToEducation,
			Reason:   "no_credible_employer_within_proximity",
		})
	}
}

// findPotentialEmployers scans ±ProximityMaxLines around itemLine (its own
// line excluded), extracts org-shaped names, drops schools, scores each,
// and returns the top 5 by confidence then distance.
func (h *InternshipHandler) findPotentialEmployers(lines []string, itemLine int) []EmployerCandidate {
	lo := itemLine - h.cfg.ProximityMaxLines
	if lo < 0 {
		lo = 0
	}
	hi := itemLine + h.cfg.ProximityMaxLines
	if hi >= len(lines) {
		hi = len(lines) - 1
	}

	best := map[string]EmployerCandidate{}
	for i := lo; i <= hi; i++ {
		if i == itemLine {
			continue
		}
		line := lines[i]
		for _, re := range employerNameRe {
			match := re.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			name := strings.TrimSpace(match[len(match)-1])
			if name == "" || h.lex.HasSchoolLexeme(name) {
				continue
			}
			dist := i - itemLine
			if dist < 0 {
				dist = -dist
			}
			conf := h.calculateOrgConfidence(name, line)
			if prev, ok := best[name]; !ok || conf > prev.Confidence {
				best[name] = EmployerCandidate{Name: name, Confidence: conf, LineDistance: dist}
			}
			break
		}
	}

	out := make([]EmployerCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].LineDistance < out[j].LineDistance
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// calculateOrgConfidence scores an employer name: legal suffixes and
// employment connectors raise it, short or all-lowercase names lower it.
func (h *InternshipHandler) calculateOrgConfidence(name, contextLine string) float64 {
	conf := 0.6
	if legalSuffixRe.MatchString(contextLine) {
		conf += 0.2
	}
	if contextIndicatorRe.MatchString(contextLine) {
		conf += 0.15
	}
	if len(name) < 5 {
		conf -= 0.1
	}
	if name == strings.ToLower(name) {
		conf -= 0.15
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
