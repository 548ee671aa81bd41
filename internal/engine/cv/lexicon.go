package cv

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the bilingual (FR/EN) word lists the scorers match against.
// Lists can be overridden from a YAML file; missing lists keep defaults.
type Lexicon struct {
	RoleKeywords    []string `yaml:"role_keywords"`
	SchoolLexemes   []string `yaml:"school_lexemes"`
	EmploymentVerbs []string `yaml:"employment_verbs"`
	InternshipTerms []string `yaml:"internship_terms"`
}

// DefaultLexicon returns the compiled-in word lists.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		RoleKeywords: []string{
			"développeur", "developpeur", "ingénieur", "ingenieur", "chef",
			"responsable", "directeur", "consultant", "analyste", "architecte",
			"technicien", "administrateur", "concepteur", "chargé de", "charge de",
			"assistant", "coordinateur", "stage", "stagiaire", "alternant", "apprenti",
			"developer", "engineer", "manager", "director",
			"analyst", "architect", "technician", "coordinator", "specialist",
			"administrator", "designer", "intern", "trainee",
			"junior", "senior", "lead",
		},
		SchoolLexemes: []string{
			"université", "universite", "university", "école", "ecole", "school",
			"institut", "institute", "faculté", "faculte", "faculty",
			"lycée", "lycee", "college", "campus", "academy", "académie", "academie",
			"polytechnique", "conservatoire",
		},
		EmploymentVerbs: []string{
			"développé", "developpe", "géré", "gere", "dirigé", "dirige",
			"réalisé", "realise", "conçu", "concu", "piloté", "pilote",
			"encadré", "encadre", "déployé", "deploye",
			"developed", "managed", "led", "built", "created", "designed",
			"implemented", "delivered", "maintained", "shipped",
		},
		InternshipTerms: []string{
			"stage", "stagiaire", "alternant", "alternance", "apprentissage",
			"apprenti", "contrat pro", "intern", "internship", "trainee",
			"work study", "coop", "co-op", "placement",
			"work integrated learning", "student worker",
		},
	}
}

// LoadLexicon reads YAML overrides from path and merges them over defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	lex := DefaultLexicon()
	if path == "" {
		return lex, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: read %s: %w", path, err)
	}
	var overrides Lexicon
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("lexicon: parse %s: %w", path, err)
	}
	if len(overrides.RoleKeywords) > 0 {
		lex.RoleKeywords = overrides.RoleKeywords
	}
	if len(overrides.SchoolLexemes) > 0 {
		lex.SchoolLexemes = overrides.SchoolLexemes
	}
	if len(overrides.EmploymentVerbs) > 0 {
		lex.EmploymentVerbs = overrides.EmploymentVerbs
	}
	if len(overrides.InternshipTerms) > 0 {
		lex.InternshipTerms = overrides.InternshipTerms
	}
	return lex, nil
}

// HasSchoolLexeme reports whether text mentions an educational institution.
func (l *Lexicon) HasSchoolLexeme(text string) bool {
	lower := strings.ToLower(text)
	for _, s := range l.SchoolLexemes {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// HasEmploymentVerb reports whether text carries active employment language.
func (l *Lexicon) HasEmploymentVerb(text string) bool {
	lower := strings.ToLower(text)
	for _, v := range l.EmploymentVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// HasInternshipTerm reports whether text mentions an internship/work-study arrangement.
func (l *Lexicon) HasInternshipTerm(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range l.InternshipTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
