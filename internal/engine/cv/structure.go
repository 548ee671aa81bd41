package cv

import (
	"sort"
	"strings"
	"unicode"

	"github.com/RadhiFadlillah/whatlanggo"
)

// StructureConfig holds layout-analysis thresholds.
type StructureConfig struct {
	MaxColumnGapPx          float64 // x-gap starting a new column
	GuardMaxLines           int     // guard range length after a header line
	EduMergeMaxGap          int     // max section gap for education consolidation
	EduHeaderMinSim         float64 // min word-overlap similarity for consolidation
	ContactDensityThreshold float64 // contact line density for quarantine
	SidebarWidthRatio       float64 // width below ratio×avg marks a sidebar
	ScriptCharRatio         float64 // min RTL/CJK char ratio to flip reading order
}

// DefaultStructureConfig mirrors the tuned production thresholds.
func DefaultStructureConfig() StructureConfig {
	return StructureConfig{
		MaxColumnGapPx:          120,
		GuardMaxLines:           6,
		EduMergeMaxGap:          3,
		EduHeaderMinSim:         0.72,
		ContactDensityThreshold: 0.6,
		SidebarWidthRatio:       0.6,
		ScriptCharRatio:         0.10,
	}
}

// eduHeaderTerms are education section headers across supported scripts.
var eduHeaderTerms = []string{
	"education", "formation", "études", "etudes", "diplômes", "diplomes",
	"educación", "educacion", "estudios",
	"bildung", "ausbildung",
	"تعليم", "التعليم",
	"השכלה",
	"教育", "学歴",
}

// StructureAnalyzer derives layout flags and consolidates fragmented
// education sections before extraction runs.
type StructureAnalyzer struct {
	cfg    StructureConfig
	guards *BoundaryGuards
}

// NewStructureAnalyzer creates an analyzer with the given thresholds.
func NewStructureAnalyzer(cfg StructureConfig, guards *BoundaryGuards) *StructureAnalyzer {
	if cfg.MaxColumnGapPx == 0 {
		cfg = DefaultStructureConfig()
	}
	if guards == nil {
		guards = NewBoundaryGuards(DefaultGuardConfig())
	}
	return &StructureAnalyzer{cfg: cfg, guards: guards}
}

// Analyze runs the full layout pass: columns, reading order, sidebars,
// timelines, contact quarantine, education consolidation, header guards,
// and final validation. Sections come back flagged and consolidated.
func (a *StructureAnalyzer) Analyze(sections []Section, collector *MetricsCollector) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)

	a.assignColumns(out)
	for i := range out {
		a.flagSection(&out[i])
	}

	out = a.consolidateEducation(out, collector)
	out = a.validate(out)

	if collector != nil {
		collector.SetCounts(len(out), 0)
	}
	return out
}

// assignColumns clusters sections by bbox x position. Sections without a
// bbox go to column 0. Sidebars are columns narrower than the average.
func (a *StructureAnalyzer) assignColumns(sections []Section) {
	type positioned struct {
		idx int
		x   float64
		w   float64
	}
	var pos []positioned
	for i := range sections {
		if sections[i].BBox == nil {
			sections[i].Flags.ColumnID = 0
			continue
		}
		pos = append(pos, positioned{idx: i, x: sections[i].BBox.X, w: sections[i].BBox.W})
	}
	if len(pos) == 0 {
		return
	}
	sort.Slice(pos, func(i, j int) bool { return pos[i].x < pos[j].x })

	col := 0
	colWidths := map[int][]float64{}
	for i, p := range pos {
		if i > 0 && p.x-pos[i-1].x > a.cfg.MaxColumnGapPx {
			col++
		}
		sections[p.idx].Flags.ColumnID = col
		colWidths[col] = append(colWidths[col], p.w)
	}

	// Sidebar: column width below ratio × average column width.
	var avg float64
	for _, ws := range colWidths {
		for _, w := range ws {
			avg += w
		}
	}
	total := 0
	for _, ws := range colWidths {
		total += len(ws)
	}
	if total == 0 {
		return
	}
	avg /= float64(total)
	for _, p := range pos {
		if p.w < a.cfg.SidebarWidthRatio*avg {
			sections[p.idx].Flags.IsSidebar = true
		}
	}
}

// flagSection sets reading order, timeline, contact quarantine, section
// kind guess and header guard ranges for one section.
func (a *StructureAnalyzer) flagSection(s *Section) {
	text := strings.Join(s.Lines, "\n")

	s.Flags.ReadingOrder = a.detectReadingOrder(text)

	if isTimeline, _ := a.guards.DetectTimelineBlock(s.Lines, 0, len(s.Lines)); isTimeline {
		s.Flags.IsTimeline = true
	}

	if a.contactDensity(s.Lines) >= a.cfg.ContactDensityThreshold {
		s.Flags.IsQuarantined = true
		s.Flags.SectionKindGuess = "contact"
	} else if isEducationHeader(firstNonEmpty(s.Lines)) {
		s.Flags.SectionKindGuess = "education"
	}

	s.Flags.GuardMaskRanges = a.headerGuardRanges(s.Lines)
}

// detectReadingOrder picks rtl for Arabic/Hebrew-dominant text and ttb for
// CJK-dominant text. Script detection plus a raw character-ratio check so
// short mixed sections still flip.
func (a *StructureAnalyzer) detectReadingOrder(text string) string {
	script := whatlanggo.DetectScript(text)
	if script == unicode.Arabic || script == unicode.Hebrew {
		return "rtl"
	}
	if script == unicode.Han || script == unicode.Hiragana || script == unicode.Katakana || script == unicode.Hangul {
		return "ttb"
	}

	var rtl, cjk, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Arabic, r) || unicode.Is(unicode.Hebrew, r):
			rtl++
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			cjk++
		}
	}
	if total == 0 {
		return "ltr"
	}
	if float64(rtl)/float64(total) > a.cfg.ScriptCharRatio {
		return "rtl"
	}
	if float64(cjk)/float64(total) > a.cfg.ScriptCharRatio {
		return "ttb"
	}
	return "ltr"
}

func (a *StructureAnalyzer) contactDensity(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	hits := 0
	nonEmpty := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		nonEmpty++
		if contactScore(l) >= 0.5 {
			hits++
		}
	}
	if nonEmpty == 0 {
		return 0
	}
	return float64(hits) / float64(nonEmpty)
}

// headerGuardRanges marks up to GuardMaxLines after each header-looking
// line, so extraction does not bind evidence across a header.
func (a *StructureAnalyzer) headerGuardRanges(lines []string) [][2]int {
	var ranges [][2]int
	for i, l := range lines {
		if !looksLikeHeader(l) {
			continue
		}
		end := i + 1 + a.cfg.GuardMaxLines
		if end > len(lines) {
			end = len(lines)
		}
		ranges = append(ranges, [2]int{i, end})
	}
	return ranges
}

// looksLikeHeader: short, mostly-uppercase line with no sentence punctuation.
func looksLikeHeader(line string) bool {
	l := strings.TrimSpace(line)
	if l == "" || len(l) > 40 || strings.ContainsAny(l, ".!?") {
		return false
	}
	letters, upper := 0, 0
	for _, r := range l {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 3 && float64(upper)/float64(letters) >= 0.7
}

func isEducationHeader(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, t := range eduHeaderTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func firstNonEmpty(lines []string) string {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

// consolidateEducation merges education fragments whose headers agree
// (word-overlap similarity above the threshold) and that sit within
// EduMergeMaxGap sections of each other.
func (a *StructureAnalyzer) consolidateEducation(sections []Section, collector *MetricsCollector) []Section {
	var eduIdx []int
	for i := range sections {
		if sections[i].Flags.SectionKindGuess == "education" {
			eduIdx = append(eduIdx, i)
		}
	}
	if len(eduIdx) < 2 {
		if collector != nil {
			collector.LogEducationDedup(len(eduIdx))
		}
		return sections
	}

	merged := map[int]bool{}
	for k := 0; k+1 < len(eduIdx); k++ {
		cur, next := eduIdx[k], eduIdx[k+1]
		if merged[cur] {
			continue
		}
		if next-cur > a.cfg.EduMergeMaxGap {
			continue
		}
		simA := firstNonEmpty(sections[cur].Lines)
		simB := firstNonEmpty(sections[next].Lines)
		if headerSimilarity(simA, simB) < a.cfg.EduHeaderMinSim {
			continue
		}
		sections[cur].Lines = append(sections[cur].Lines, sections[next].Lines...)
		sections[cur].Flags.MergeCandidate = true
		merged[next] = true
	}

	var out []Section
	kept := 0
	for i := range sections {
		if merged[i] {
			continue
		}
		if sections[i].Flags.SectionKindGuess == "education" {
			kept++
		}
		out = append(out, sections[i])
	}
	if collector != nil {
		collector.LogEducationDedup(kept)
	}
	return out
}

// headerSimilarity is Jaccard word overlap over lowercased header tokens.
func headerSimilarity(a, b string) float64 {
	wa := strings.Fields(strings.ToLower(a))
	wb := strings.Fields(strings.ToLower(b))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, w := range wa {
		setA[w] = true
	}
	inter := 0
	setB := map[string]bool{}
	for _, w := range wb {
		if setB[w] {
			continue
		}
		setB[w] = true
		if setA[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// validate drops sections whose text is too short to carry anything.
func (a *StructureAnalyzer) validate(sections []Section) []Section {
	var out []Section
	for _, s := range sections {
		text := strings.TrimSpace(strings.Join(s.Lines, ""))
		if len(text) < 10 {
			continue
		}
		out = append(out, s)
	}
	return out
}
