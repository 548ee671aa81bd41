package cv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMapCEFRLevel(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		wantConf float64
	}{
		{"explicit level", "Anglais B2", "B2", 1.0},
		{"explicit lowercase", "english c1", "C1", 1.0},
		{"native", "Français: langue maternelle", "C2", 0.95},
		{"bilingual", "Bilingue anglais-français", "C2", 0.90},
		{"fluent", "English: fluent", "C1", 0.85},
		{"courant", "Anglais courant", "C1", 0.85},
		{"professional", "Professional working proficiency", "B2", 0.80},
		{"conversational", "Spanish, conversational", "B1", 0.75},
		{"intermediate", "Intermediate German", "B1", 0.70},
		{"basic", "Basic Italian", "A2", 0.75},
		{"notions", "Allemand: notions", "A2", 0.75},
		{"debutant", "Espagnol débutant", "A1", 0.80},
		{"unknown", "Klingon", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, conf := MapCEFRLevel(tt.text)
			if level != tt.want || conf != tt.wantConf {
				t.Errorf("MapCEFRLevel(%q) = (%q, %.2f), want (%q, %.2f)",
					tt.text, level, conf, tt.want, tt.wantConf)
			}
		})
	}
}

func TestMapCEFRLevelExplicitWins(t *testing.T) {
	// An explicit level beats any heuristic wording in the same phrase.
	level, conf := MapCEFRLevel("Anglais courant (B1)")
	if level != "B1" || conf != 1.0 {
		t.Errorf("got (%q, %.2f), want (B1, 1.00)", level, conf)
	}
}

func TestLoadLexiconDefaults(t *testing.T) {
	lex, err := LoadLexicon("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lex.HasSchoolLexeme("Université de Lyon") {
		t.Error("default school lexemes missing université")
	}
	if !lex.HasInternshipTerm("stage de fin d'études") {
		t.Error("default internship terms missing stage")
	}
	if !lex.HasEmploymentVerb("developed the billing system") {
		t.Error("default employment verbs missing developed")
	}
}

func TestLoadLexiconOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	yaml := "school_lexemes:\n  - hochschule\n  - fachschule\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lex.HasSchoolLexeme("Hochschule München") {
		t.Error("override list not applied")
	}
	if lex.HasSchoolLexeme("Université de Lyon") {
		t.Error("overridden list should replace defaults")
	}
	// Non-overridden lists keep defaults.
	if !lex.HasInternshipTerm("alternance en entreprise") {
		t.Error("untouched list lost its defaults")
	}
}
