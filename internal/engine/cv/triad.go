package cv

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/araddon/dateparse"
)

// TriadConfig holds the scoring and routing thresholds.
type TriadConfig struct {
	MinDateConf      float64
	MinRoleTokenConf float64
	MinOrgConf       float64
	MinAssoc         float64
	SchoolOrgBoost   float64
	SchoolOrgMin     float64
}

// DefaultTriadConfig mirrors the tuned production thresholds.
func DefaultTriadConfig() TriadConfig {
	return TriadConfig{
		MinDateConf:      0.60,
		MinRoleTokenConf: 0.55,
		MinOrgConf:       0.50,
		MinAssoc:         0.70,
		SchoolOrgBoost:   0.20,
		SchoolOrgMin:     0.70,
	}
}

type datePattern struct {
	re   *regexp.Regexp
	kind string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), "dmy"},
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2})\b`), "dmy2"},
	{regexp.MustCompile(`\b(\d{1,2})/((?:19|20)\d{2})\b`), "my"},
	{regexp.MustCompile(`\b((?:19|20)\d{2})\s*[-–—]\s*((?:19|20)\d{2})\b`), "range"},
	{regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s*[-–—]\s*(présent|present|current|en cours|à ce jour)\b`), "open"},
	{regexp.MustCompile(`\b((?:19|20)\d{2})\b`), "year"},
}

var strongRoleLabels = []string{"poste:", "poste :", "fonction:", "fonction :", "title:", "position:"}

var titleCaseRe = regexp.MustCompile(`\b[A-ZÀ-Ý][a-zà-ÿ]+(?:\s+[A-ZÀ-Ý][a-zà-ÿ]+)+\b`)

// orgPatterns match organization-shaped names. RE2's \w is ASCII-only, so
// the name classes use \p{L}\p{N} to keep accented names (Université,
// Société Générale) intact.
var orgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-ZÀ-Ý][\p{L}\p{N}&.'-]*(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]*)*)\s+(SARL|SASU|SAS|SA|Inc\.?|Ltd\.?|LLC|Corp\.?|GmbH)\b`),
	regexp.MustCompile(`(?:chez|Chez|at|At)\s+([A-ZÀ-Ý][\p{L}\p{N}&.'-]*(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]*)*)`),
	regexp.MustCompile(`([A-ZÀ-Ý][\p{L}\p{N}&.'-]*(?:\s+[A-ZÀ-Ý][\p{L}\p{N}&.'-]*)*)\s+(?:company|société|societe|entreprise|group|groupe)\b`),
	regexp.MustCompile(`(?i)(université|universite|university|école|ecole|institut|institute|faculté|faculte)\s+[\p{L}\p{N}'-]+`),
}

// ParserMapper scores candidates on the date/role/org triad and routes them.
type ParserMapper struct {
	cfg TriadConfig
	lex *Lexicon
}

// NewParserMapper creates a mapper with the given thresholds and lexicon.
// A nil lexicon falls back to defaults.
func NewParserMapper(cfg TriadConfig, lex *Lexicon) *ParserMapper {
	if cfg.MinDateConf == 0 && cfg.MinAssoc == 0 {
		cfg = DefaultTriadConfig()
	}
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &ParserMapper{cfg: cfg, lex: lex}
}

// ScoreDateEvidence matches every date shape in text and returns the max
// confidence plus the matched tokens.
func (m *ParserMapper) ScoreDateEvidence(text string) (float64, []string) {
	best := 0.0
	var tokens []string
	for _, p := range datePatterns {
		for _, match := range p.re.FindAllStringSubmatch(text, -1) {
			conf := validateDateMatch(p.kind, match)
			if conf > best {
				best = conf
			}
			if conf > 0 {
				tokens = append(tokens, match[0])
			}
		}
	}
	if best > 1.0 {
		best = 1.0
	}
	return best, tokens
}

// validateDateMatch scores one regex match. Swapped day/month still scores,
// just lower; implausible years are penalized hard.
func validateDateMatch(kind string, match []string) float64 {
	switch kind {
	case "dmy", "dmy2":
		d := atoiSafe(match[1])
		mo := atoiSafe(match[2])
		y := atoiSafe(match[3])
		if kind == "dmy2" {
			if y > 30 {
				y += 1900
			} else {
				y += 2000
			}
		}
		if y < 1950 || y > 2030 {
			return 0.3
		}
		switch {
		case d <= 12 && mo <= 31:
			return 0.9
		case d <= 31 && mo <= 12:
			return 0.8
		default:
			return 0.2
		}
	case "my":
		mo := atoiSafe(match[1])
		y := atoiSafe(match[2])
		if mo >= 1 && mo <= 12 && y >= 1950 && y <= 2030 {
			return 0.85
		}
		return 0.3
	case "year":
		y := atoiSafe(match[1])
		if y < 1950 || y > 2030 {
			return 0.3
		}
		return 0.6
	default: // range, open
		return 0.6
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// ScoreRoleEvidence scores job-title evidence: a known role keyword is 0.7,
// 0.9 when introduced by an explicit label, Title-Case fallback 0.6.
func (m *ParserMapper) ScoreRoleEvidence(text string) float64 {
	lower := strings.ToLower(text)
	hasKeyword := false
	for _, kw := range m.lex.RoleKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	if hasKeyword {
		for _, label := range strongRoleLabels {
			if strings.Contains(lower, label) {
				return 0.9
			}
		}
		return 0.7
	}
	if titleCaseRe.MatchString(text) {
		return 0.6
	}
	return 0
}

// ScoreOrgEvidence scores organization evidence. School-like orgs are capped
// at 0.5 unless the surrounding text shows actual employment, which adds
// SchoolOrgBoost.
func (m *ParserMapper) ScoreOrgEvidence(text string) (float64, string, bool) {
	var org string
	for _, re := range orgPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			if len(match) > 1 && match[1] != "" {
				org = strings.TrimSpace(match[1])
			} else {
				org = strings.TrimSpace(match[0])
			}
			break
		}
	}
	if org == "" {
		return 0, "", false
	}

	isSchool := m.lex.HasSchoolLexeme(org)
	if !isSchool {
		return 0.8, org, false
	}

	score := 0.5
	if m.lex.HasEmploymentVerb(text) {
		score += m.cfg.SchoolOrgBoost
	}
	if score > 1 {
		score = 1
	}
	return score, org, true
}

// ScoreTriad computes the full triad for a candidate text block.
func (m *ParserMapper) ScoreTriad(text string) TriadScore {
	dateConf, _ := m.ScoreDateEvidence(text)
	roleConf := m.ScoreRoleEvidence(text)
	orgConf, _, _ := m.ScoreOrgEvidence(text)
	return TriadScore{
		DateConf:   dateConf,
		RoleConf:   roleConf,
		OrgConf:    orgConf,
		AssocScore: m.associationScore(strings.Split(text, "\n")),
	}
}

// associationScore measures how tightly evidence lines cluster. Fewer than
// two evidence lines is neutral (0.5). Otherwise the best pair wins:
// proximity decays linearly over 5 lines, weighted by combined evidence.
func (m *ParserMapper) associationScore(lines []string) float64 {
	type evidenceLine struct {
		idx    int
		points float64
	}
	var ev []evidenceLine
	for i, line := range lines {
		points := 0.0
		if d, _ := m.ScoreDateEvidence(line); d > 0 {
			points++
		}
		if m.ScoreRoleEvidence(line) > 0 {
			points++
		}
		if o, _, _ := m.ScoreOrgEvidence(line); o > 0 {
			points++
		}
		if points > 0 {
			ev = append(ev, evidenceLine{idx: i, points: points})
		}
	}
	if len(ev) < 2 {
		return 0.5
	}

	best := 0.0
	for i := 0; i < len(ev); i++ {
		for j := i + 1; j < len(ev); j++ {
			d := float64(ev[j].idx - ev[i].idx)
			proximity := 1 - d/5
			if proximity < 0 {
				proximity = 0
			}
			score := proximity * (ev[i].points + ev[j].points) / 6
			if score > best {
				best = score
			}
		}
	}
	if best > 1 {
		best = 1
	}
	return best
}

// MapCandidate scores, routes, and cleans one candidate in place, logging
// the decision to the collector when one is attached.
func (m *ParserMapper) MapCandidate(item *CandidateItem, collector *MetricsCollector) {
	item.Triad = m.ScoreTriad(item.Text)

	_, org, _ := m.ScoreOrgEvidence(item.Text)
	if org != "" && item.Fields.Organization == "" {
		item.Fields.Organization = org
	}

	if _, tokens := m.ScoreDateEvidence(item.Text); len(tokens) > 0 {
		item.Fields.Dates = normalizeDateTokens(tokens)
	}

	decision, reason := m.routeCandidate(item)

	item.Warnings = append(item.Warnings, m.CleanContaminatedFields(item)...)

	if collector != nil {
		collector.LogDecision(DecisionLog{
			RuleID: "triad_binding_v1",
			Scores: map[string]float64{
				"date_conf":   item.Triad.DateConf,
				"role_conf":   item.Triad.RoleConf,
				"org_conf":    item.Triad.OrgConf,
				"assoc_score": item.Triad.AssocScore,
				"overall":     item.Triad.OverallScore(),
			},
			Thresholds: map[string]float64{
				"min_date_conf":       m.cfg.MinDateConf,
				"min_role_token_conf": m.cfg.MinRoleTokenConf,
				"min_org_conf":        m.cfg.MinOrgConf,
				"min_assoc":           m.cfg.MinAssoc,
			},
			Decision: decision,
			Reason:   reason,
		})
		collector.LogRoutingDecision("experience", decision)
	}
}

// routeCandidate applies the routing chain, binding status and item type
// onto the item. The org threshold is school-aware: a school org that
// clears SchoolOrgMin with the rest of the triad is still an accepted
// experience; a school org below it with no employment evidence routes to
// education. Date-only evidence is uncertain; anything weaker is rejected.
func (m *ParserMapper) routeCandidate(item *CandidateItem) (string, string) {
	t := item.Triad
	containsSchool := m.lex.HasSchoolLexeme(item.Text)

	orgMin := m.cfg.MinOrgConf
	if containsSchool {
		orgMin = m.cfg.SchoolOrgMin
	}

	dateOK := t.DateConf >= m.cfg.MinDateConf
	roleOK := t.RoleConf >= m.cfg.MinRoleTokenConf
	orgOK := t.OrgConf >= orgMin
	assocOK := t.AssocScore >= m.cfg.MinAssoc

	switch {
	case dateOK && roleOK && orgOK && assocOK:
		item.Status = StatusOK
		item.ItemType = "experience"
		return DecisionAccepted, "all_thresholds_met"
	case dateOK && roleOK && !orgOK && containsSchool && !m.lex.HasEmploymentVerb(item.Text):
		item.Status = StatusOK
		item.ItemType = "education"
		item.Warnings = append(item.Warnings, "routed_to_education_school_context")
		return DecisionRoutedToEducation, "school_org_without_employment_evidence"
	case dateOK && !roleOK && !orgOK:
		item.Status = StatusUncertain
		item.Warnings = append(item.Warnings, "insufficient_role_org_evidence")
		return DecisionUncertain, fmt.Sprintf(
			"role_conf=%.2f org_conf=%.2f below thresholds", t.RoleConf, t.OrgConf)
	default:
		item.Status = StatusRejected
		item.Warnings = append(item.Warnings, "insufficient_triad_evidence")
		return DecisionRejected, fmt.Sprintf(
			"date_conf=%.2f role_conf=%.2f org_conf=%.2f assoc_score=%.2f",
			t.DateConf, t.RoleConf, t.OrgConf, t.AssocScore)
	}
}

// dateTokenRe finds date tokens that contaminate identity fields.
var dateTokenRe = regexp.MustCompile(`(?i)\b((?:19|20)\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre|january|february|march|april|june|july|august|september|october|november|december)\b`)

// CleanContaminatedFields relocates date tokens found in identity fields to
// the description and marks the field unknown. Returns warnings.
func (m *ParserMapper) CleanContaminatedFields(item *CandidateItem) []string {
	var warnings []string
	check := func(name string, field *string) {
		if *field == "" || *field == FieldUnknown {
			return
		}
		if dateTokenRe.MatchString(*field) {
			if item.Fields.Description != "" {
				item.Fields.Description += "; "
			}
			item.Fields.Description += *field
			*field = FieldUnknown
			warnings = append(warnings, "date_token_in_"+name)
		}
	}
	check("title", &item.Fields.Title)
	check("company", &item.Fields.Company)
	check("role", &item.Fields.Role)
	check("organization", &item.Fields.Organization)
	return warnings
}

// normalizeDateTokens parses matched tokens into ISO year-month form where
// possible; unparseable tokens pass through as matched.
func normalizeDateTokens(tokens []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		norm := tok
		if t, err := dateparse.ParseAny(tok); err == nil {
			norm = t.Format("2006-01")
		}
		if !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out
}
