package cv

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// GuardConfig holds window-expansion guard thresholds.
type GuardConfig struct {
	KillRadius               int     // lines scanned around a target for header conflicts
	MaxCrossColumnDistance   int     // max column-index distance for linked evidence
	TimelineDensityThreshold float64 // window density above which a block is a timeline
	TimelineWindow           int     // sliding window size for timeline detection
}

// DefaultGuardConfig matches the tuned production thresholds.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		KillRadius:               8,
		MaxCrossColumnDistance:   2,
		TimelineDensityThreshold: 0.45,
		TimelineWindow:           4,
	}
}

// educationHeaders are section headers that kill experience window expansion
// when found near the target line. Matched case-insensitively as substrings.
var educationHeaders = []string{
	"FORMATION", "FORMATIONS",
	"ÉDUCATION", "EDUCATION",
	"DIPLÔMES", "DIPLOMES", "DIPLÔME", "DIPLOME",
	"ÉTUDES", "ETUDES",
	"SCOLARITÉ", "SCOLARITE",
	"ACADEMIC BACKGROUND", "ACADEMICS",
	"CURSUS",
}

var timelineLineRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(19|20)\d{2}\b`),
	regexp.MustCompile(`(?i)\b(19|20)\d{2}\s*[-–—→]\s*((19|20)\d{2}|présent|present|aujourd'hui|now|current)\b`),
	regexp.MustCompile(`\b\d{1,2}/(19|20)\d{2}\b`),
	regexp.MustCompile(`(?i)\b(janv|févr|fevr|mars|avril|mai|juin|juil|août|aout|sept|oct|nov|déc|dec|jan|feb|mar|apr|may|jun|jul|aug)\w*\.?\s+(19|20)\d{2}\b`),
}

// BoundaryGuards validates whether an extraction window may keep expanding.
type BoundaryGuards struct {
	cfg GuardConfig
}

// NewBoundaryGuards creates guards with the given thresholds.
func NewBoundaryGuards(cfg GuardConfig) *BoundaryGuards {
	if cfg.KillRadius <= 0 {
		cfg = DefaultGuardConfig()
	}
	return &BoundaryGuards{cfg: cfg}
}

// CheckHeaderConflictKillRadius scans KillRadius lines around target for an
// education header. Returns the header found and its line distance, or
// (false, "", -1) when clear.
func (g *BoundaryGuards) CheckHeaderConflictKillRadius(lines []string, target int) (bool, string, int) {
	if target < 0 || target >= len(lines) {
		return false, "", -1
	}
	lo := target - g.cfg.KillRadius
	if lo < 0 {
		lo = 0
	}
	hi := target + g.cfg.KillRadius
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	best := -1
	bestHeader := ""
	for i := lo; i <= hi; i++ {
		upper := strings.ToUpper(lines[i])
		for _, h := range educationHeaders {
			if strings.Contains(upper, h) {
				d := i - target
				if d < 0 {
					d = -d
				}
				if best == -1 || d < best {
					best = d
					bestHeader = h
				}
			}
		}
	}
	if best == -1 {
		return false, "", -1
	}
	return true, bestHeader, best
}

// CheckCrossColumnDistance reports whether two column indices are close
// enough to link evidence across columns.
func (g *BoundaryGuards) CheckCrossColumnDistance(colA, colB int) bool {
	d := colA - colB
	if d < 0 {
		d = -d
	}
	return d <= g.cfg.MaxCrossColumnDistance
}

// DetectTimelineBlock slides a window over [start, end) counting lines that
// carry timeline tokens (years, ranges, month-year stamps). Returns whether
// any window exceeds the density threshold, and the max density seen.
func (g *BoundaryGuards) DetectTimelineBlock(lines []string, start, end int) (bool, float64) {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end-start < 2 {
		return false, 0
	}

	window := g.cfg.TimelineWindow
	if window < 2 {
		window = 2
	}
	if window > end-start {
		window = end - start
	}

	maxDensity := 0.0
	for ws := start; ws+window <= end; ws++ {
		hits := 0
		for i := ws; i < ws+window; i++ {
			if lineHasTimelineToken(lines[i]) {
				hits++
			}
		}
		d := float64(hits) / float64(window)
		if d > maxDensity {
			maxDensity = d
		}
	}
	return maxDensity > g.cfg.TimelineDensityThreshold, maxDensity
}

func lineHasTimelineToken(line string) bool {
	for _, re := range timelineLineRe {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// ShouldTerminateWindowExpansion runs all guards against a proposed
// expansion and returns the triggered reasons. Any single guard terminates.
func (g *BoundaryGuards) ShouldTerminateWindowExpansion(lines []string, windowStart, windowEnd, target, colCurrent, colTarget int) (bool, []string) {
	var reasons []string

	if conflict, header, dist := g.CheckHeaderConflictKillRadius(lines, target); conflict {
		reasons = append(reasons, fmt.Sprintf("header_conflict_%s_distance_%d", header, dist))
	}
	if isTimeline, density := g.DetectTimelineBlock(lines, windowStart, windowEnd); isTimeline {
		reasons = append(reasons, fmt.Sprintf("timeline_block_density_%.2f", density))
	}
	if !g.CheckCrossColumnDistance(colCurrent, colTarget) {
		reasons = append(reasons, "cross_column_distance_exceeded")
	}

	return len(reasons) > 0, reasons
}

// --- Tri-signal validation ---

// Entity is a pre-computed NER span folded into tri-signal evidence.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"` // ORG, PER, MISC, DATE
	Line  int    `json:"line"`
}

// TriSignalResult reports the evidence found around a target line.
type TriSignalResult struct {
	Passes   bool             `json:"passes"`
	Signals  int              `json:"signals"`
	HasDate  bool             `json:"has_date"`
	HasOrg   bool             `json:"has_org"`
	HasRole  bool             `json:"has_role"`
	Evidence map[string][]int `json:"evidence,omitempty"` // signal kind → line numbers
}

// TriSignalConfig controls linkage validation around a candidate line.
type TriSignalConfig struct {
	Window      int  // lines scanned either side of the target
	MinSignals  int  // distinct signal kinds required
	RequireDate bool // a date signal is mandatory regardless of count
}

// DefaultTriSignalConfig mirrors the tuned defaults.
func DefaultTriSignalConfig() TriSignalConfig {
	return TriSignalConfig{Window: 3, MinSignals: 2, RequireDate: true}
}

var triDateRe = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	regexp.MustCompile(`\b\d{1,2}/(19|20)\d{2}\b`),
	regexp.MustCompile(`\b(19|20)\d{2}\b`),
	regexp.MustCompile(`(?i)\b(janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre|january|february|march|april|may|june|july|august|september|october|november|december)\b`),
}

var triOrgIndicators = []string{
	"chez", "at", "company", "corp", "inc", "ltd", "llc",
	"sarl", "sas", "sasu", "société", "societe", "entreprise", "group", "groupe",
}

var triRoleIndicators = []string{
	"développeur", "developpeur", "developer", "ingénieur", "ingenieur", "engineer",
	"manager", "consultant", "analyste", "analyst", "architecte", "architect",
	"chef de projet", "directeur", "director", "lead", "responsable", "technicien",
	"designer", "administrateur", "administrator", "stagiaire", "intern",
}

// TriSignalValidator checks that an extraction target is backed by linked
// date/org/role evidence on distinct nearby lines.
type TriSignalValidator struct {
	cfg TriSignalConfig
}

// NewTriSignalValidator creates a validator with the given config.
func NewTriSignalValidator(cfg TriSignalConfig) *TriSignalValidator {
	if cfg.Window <= 0 {
		cfg = DefaultTriSignalConfig()
	}
	return &TriSignalValidator{cfg: cfg}
}

// ValidateTriSignalLinkage scans ±Window lines around target for the three
// signal kinds. Each line counts at most once per kind. NER entities whose
// line falls in the window fold into the corresponding kind.
func (v *TriSignalValidator) ValidateTriSignalLinkage(lines []string, target int, entities []Entity) TriSignalResult {
	res := TriSignalResult{Evidence: map[string][]int{}}
	if target < 0 || target >= len(lines) {
		return res
	}

	lo := target - v.cfg.Window
	if lo < 0 {
		lo = 0
	}
	hi := target + v.cfg.Window
	if hi >= len(lines) {
		hi = len(lines) - 1
	}

	dateLines := map[int]bool{}
	orgLines := map[int]bool{}
	roleLines := map[int]bool{}

	for i := lo; i <= hi; i++ {
		lower := strings.ToLower(lines[i])
		for _, re := range triDateRe {
			if re.MatchString(lines[i]) {
				dateLines[i] = true
				break
			}
		}
		for _, ind := range triOrgIndicators {
			if containsWord(lower, ind) {
				orgLines[i] = true
				break
			}
		}
		for _, ind := range triRoleIndicators {
			if strings.Contains(lower, ind) {
				roleLines[i] = true
				break
			}
		}
	}

	for _, e := range entities {
		if e.Line < lo || e.Line > hi {
			continue
		}
		switch strings.ToUpper(e.Label) {
		case "ORG":
			orgLines[e.Line] = true
		case "DATE":
			dateLines[e.Line] = true
		case "PER", "MISC":
			roleLines[e.Line] = true
		}
	}

	res.HasDate = len(dateLines) > 0
	res.HasOrg = len(orgLines) > 0
	res.HasRole = len(roleLines) > 0
	res.Evidence["date"] = sortedKeys(dateLines)
	res.Evidence["org"] = sortedKeys(orgLines)
	res.Evidence["role"] = sortedKeys(roleLines)

	if res.HasDate {
		res.Signals++
	}
	if res.HasOrg {
		res.Signals++
	}
	if res.HasRole {
		res.Signals++
	}

	res.Passes = res.Signals >= v.cfg.MinSignals && (!v.cfg.RequireDate || res.HasDate)
	return res
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(haystack[i-1])
		after := i+len(word) >= len(haystack) || !isWordByte(haystack[i+len(word)])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// --- Section content validation ---

var contactLineRe = []*regexp.Regexp{
	regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`),
	regexp.MustCompile(`(?i)\b(tel|tél|phone|mobile|portable)\b`),
	regexp.MustCompile(`\+?\d[\d .()-]{7,}\d`),
	regexp.MustCompile(`(?i)\b(linkedin\.com|github\.com|www\.)\b`),
	regexp.MustCompile(`(?i)\b(adresse|address)\b`),
}

func contactScore(line string) float64 {
	score := 0.0
	for _, re := range contactLineRe {
		if re.MatchString(line) {
			score += 0.5
		}
	}
	return score
}

// ValidateSectionContent samples lines of a boundary and reports issues:
// contact pollution inside an experience section, or empty content.
func ValidateSectionContent(lines []string, b Boundary) (bool, []string) {
	var issues []string
	if b.Start >= len(lines) || b.End <= b.Start {
		return false, []string{"empty_section"}
	}
	end := b.End
	if end > len(lines) {
		end = len(lines)
	}

	sample := []int{b.Start, (b.Start + end - 1) / 2, end - 1}
	nonEmpty := 0
	contact := 0.0
	for _, i := range sample {
		l := strings.TrimSpace(lines[i])
		if l != "" {
			nonEmpty++
		}
		contact += contactScore(l)
	}

	if nonEmpty == 0 {
		issues = append(issues, "empty_section")
	}
	if (b.SectionType == "experience" || b.SectionType == "work") && contact >= 1.5 {
		issues = append(issues, "contact_pollution")
	}
	return len(issues) == 0, issues
}

// RequestBoundaryCorrection skips up to 5 leading contact-like lines and
// returns the corrected boundary. No-op when nothing needs trimming.
func RequestBoundaryCorrection(lines []string, b Boundary) Boundary {
	start := b.Start
	limit := start + 5
	if limit > b.End {
		limit = b.End
	}
	for start < limit && start < len(lines) && contactScore(lines[start]) >= 0.5 {
		start++
	}
	b.Start = start
	return b
}

// --- Residual ledger ---

// ResidualLedger tracks which consumer owns each document line, so two
// extraction stages never consume the same line twice.
type ResidualLedger struct {
	owners map[int]string
}

// NewResidualLedger creates an empty ledger.
func NewResidualLedger() *ResidualLedger {
	return &ResidualLedger{owners: map[int]string{}}
}

// Claim marks [start, end) as owned by consumer. Returns the lines that were
// already owned by someone else; those are not re-assigned.
func (l *ResidualLedger) Claim(consumer string, start, end int) []int {
	var conflicts []int
	for i := start; i < end; i++ {
		if owner, ok := l.owners[i]; ok && owner != consumer {
			conflicts = append(conflicts, i)
			continue
		}
		l.owners[i] = consumer
	}
	return conflicts
}

// Owner returns the consumer owning a line, or "".
func (l *ResidualLedger) Owner(line int) string {
	return l.owners[line]
}

// Unclaimed returns lines in [0, total) that no consumer owns.
func (l *ResidualLedger) Unclaimed(total int) []int {
	var out []int
	for i := 0; i < total; i++ {
		if _, ok := l.owners[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
