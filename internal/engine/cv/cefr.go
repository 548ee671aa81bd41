package cv

import (
	"regexp"
	"strings"
)

// cefrExplicitRe matches an explicit CEFR level like "B2" or "c1".
var cefrExplicitRe = regexp.MustCompile(`(?i)\b([ABC][12])\b`)

// cefrHeuristic maps proficiency wording to a CEFR level. Ordered: the
// first match wins, so stronger claims are listed before weaker ones.
var cefrHeuristics = []struct {
	term       string
	level      string
	confidence float64
}{
	{"native", "C2", 0.95},
	{"natif", "C2", 0.95},
	{"langue maternelle", "C2", 0.95},
	{"bilingual", "C2", 0.90},
	{"bilingue", "C2", 0.90},
	{"fluent", "C1", 0.85},
	{"courant", "C1", 0.85},
	{"professional", "B2", 0.80},
	{"professionnel", "B2", 0.80},
	{"conversational", "B1", 0.75},
	{"intermediate", "B1", 0.70},
	{"intermédiaire", "B1", 0.70},
	{"intermediaire", "B1", 0.70},
	{"basic", "A2", 0.75},
	{"notions", "A2", 0.75},
	{"beginner", "A1", 0.80},
	{"débutant", "A1", 0.80},
	{"debutant", "A1", 0.80},
}

// MapCEFRLevel maps a language proficiency phrase to a CEFR level with a
// confidence. Explicit levels win with full confidence; otherwise the
// heuristic table applies in order. Unknown wording returns ("", 0).
func MapCEFRLevel(text string) (string, float64) {
	if m := cefrExplicitRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), 1.0
	}
	lower := strings.ToLower(text)
	for _, h := range cefrHeuristics {
		if strings.Contains(lower, h.term) {
			return h.level, h.confidence
		}
	}
	return "", 0
}
