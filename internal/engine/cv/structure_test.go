package cv

import (
	"testing"
)

func newTestAnalyzer() *StructureAnalyzer {
	return NewStructureAnalyzer(DefaultStructureConfig(), NewBoundaryGuards(DefaultGuardConfig()))
}

func TestAssignColumns(t *testing.T) {
	a := newTestAnalyzer()
	sections := []Section{
		{Lines: []string{"colonne principale gauche"}, BBox: &BBox{X: 40, W: 400}},
		{Lines: []string{"deuxième bloc gauche"}, BBox: &BBox{X: 60, W: 380}},
		{Lines: []string{"barre latérale droite"}, BBox: &BBox{X: 460, W: 140}},
	}
	a.assignColumns(sections)

	if sections[0].Flags.ColumnID != sections[1].Flags.ColumnID {
		t.Errorf("close x positions should share a column: %d vs %d",
			sections[0].Flags.ColumnID, sections[1].Flags.ColumnID)
	}
	if sections[2].Flags.ColumnID == sections[0].Flags.ColumnID {
		t.Error("distant x position should start a new column")
	}
	if !sections[2].Flags.IsSidebar {
		t.Error("narrow column should be flagged as sidebar")
	}
	if sections[0].Flags.IsSidebar {
		t.Error("wide column flagged as sidebar")
	}
}

func TestAssignColumnsNoBBox(t *testing.T) {
	a := newTestAnalyzer()
	sections := []Section{{Lines: []string{"sans position"}}}
	a.assignColumns(sections)
	if sections[0].Flags.ColumnID != 0 {
		t.Errorf("no bbox should land in column 0, got %d", sections[0].Flags.ColumnID)
	}
}

func TestDetectReadingOrder(t *testing.T) {
	a := newTestAnalyzer()
	tests := []struct {
		name string
		text string
		want string
	}{
		{"french", "Développeur logiciel à Lyon", "ltr"},
		{"arabic", "مهندس برمجيات في شركة التقنية", "rtl"},
		{"hebrew", "מהנדס תוכנה בחברת הייטק", "rtl"},
		{"chinese", "软件工程师，五年经验", "ttb"},
		{"japanese", "ソフトウェアエンジニア", "ttb"},
		{"mixed mostly latin with cjk block", "Senior engineer 软件工程师 at TechCorp in Beijing office", "ttb"},
		{"empty", "", "ltr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.detectReadingOrder(tt.text); got != tt.want {
				t.Errorf("detectReadingOrder(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFlagSectionContactQuarantine(t *testing.T) {
	a := newTestAnalyzer()
	s := Section{Lines: []string{
		"jean.dupont@example.com",
		"+33 6 12 34 56 78",
		"linkedin.com/in/jdupont",
		"12 rue de la République, Lyon",
	}}
	a.flagSection(&s)

	if !s.Flags.IsQuarantined {
		t.Fatal("contact block not quarantined")
	}
	if s.Flags.SectionKindGuess != "contact" {
		t.Errorf("kind guess = %q, want contact", s.Flags.SectionKindGuess)
	}
}

func TestFlagSectionEducationGuess(t *testing.T) {
	a := newTestAnalyzer()
	s := Section{Lines: []string{
		"FORMATION",
		"Master Informatique, Université de Lyon",
		"2018 - 2020",
	}}
	a.flagSection(&s)

	if s.Flags.SectionKindGuess != "education" {
		t.Errorf("kind guess = %q, want education", s.Flags.SectionKindGuess)
	}
	if len(s.Flags.GuardMaskRanges) == 0 {
		t.Error("header line should create a guard range")
	}
}

func TestFlagSectionTimeline(t *testing.T) {
	a := newTestAnalyzer()
	s := Section{Lines: []string{
		"2015 - 2017",
		"2017 - 2019",
		"2019 - 2021",
		"2021 - présent",
	}}
	a.flagSection(&s)
	if !s.Flags.IsTimeline {
		t.Error("timeline block not flagged")
	}
}

func TestLooksLikeHeader(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"EXPÉRIENCE PROFESSIONNELLE", true},
		{"FORMATION", true},
		{"Une phrase complète avec ponctuation.", false},
		{"texte en minuscules", false},
		{"AB", false},
		{"", false},
		{"UNE LIGNE BEAUCOUP TROP LONGUE POUR ÊTRE UN TITRE DE SECTION", false},
	}
	for _, tt := range tests {
		if got := looksLikeHeader(tt.line); got != tt.want {
			t.Errorf("looksLikeHeader(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHeaderSimilarity(t *testing.T) {
	if s := headerSimilarity("FORMATION ACADÉMIQUE", "formation académique"); s != 1.0 {
		t.Errorf("identical headers = %.2f, want 1.0", s)
	}
	if s := headerSimilarity("FORMATION", "EXPÉRIENCE"); s != 0 {
		t.Errorf("disjoint headers = %.2f, want 0", s)
	}
	if s := headerSimilarity("", "FORMATION"); s != 0 {
		t.Errorf("empty header = %.2f, want 0", s)
	}
}

func TestConsolidateEducation(t *testing.T) {
	a := newTestAnalyzer()
	sections := []Section{
		{Lines: []string{"FORMATION", "Master Informatique 2020"}, Flags: StructureFlags{SectionKindGuess: "education"}},
		{Lines: []string{"FORMATION", "Licence Informatique 2018"}, Flags: StructureFlags{SectionKindGuess: "education"}},
		{Lines: []string{"COMPÉTENCES", "Go, PostgreSQL, Redis"}},
	}
	collector := NewMetricsCollector("doc-structure")

	out := a.consolidateEducation(sections, collector)
	if len(out) != 2 {
		t.Fatalf("sections after consolidation = %d, want 2", len(out))
	}
	if !out[0].Flags.MergeCandidate {
		t.Error("merged section not flagged as merge candidate")
	}
	if len(out[0].Lines) != 4 {
		t.Errorf("merged lines = %d, want 4", len(out[0].Lines))
	}

	m := collector.Metrics()
	if len(m.EduDedupCounts) != 1 || m.EduDedupCounts[0] != 1 {
		t.Errorf("dedup counts = %v, want [1]", m.EduDedupCounts)
	}
}

func TestConsolidateEducationDissimilarHeaders(t *testing.T) {
	a := newTestAnalyzer()
	sections := []Section{
		{Lines: []string{"FORMATION ACADÉMIQUE", "Master 2020"}, Flags: StructureFlags{SectionKindGuess: "education"}},
		{Lines: []string{"DIPLÔMES OBTENUS", "Licence 2018"}, Flags: StructureFlags{SectionKindGuess: "education"}},
	}
	out := a.consolidateEducation(sections, nil)
	if len(out) != 2 {
		t.Errorf("dissimilar headers must not merge, got %d sections", len(out))
	}
}

func TestAnalyzeDropsTinySections(t *testing.T) {
	a := newTestAnalyzer()
	sections := []Section{
		{Lines: []string{"ok"}},
		{Lines: []string{"Développeur Backend chez Acme SARL", "2019 - 2022"}},
	}
	out := a.Analyze(sections, nil)
	if len(out) != 1 {
		t.Fatalf("sections = %d, want tiny one dropped", len(out))
	}
}

func TestAnalyzeSetsCounts(t *testing.T) {
	a := newTestAnalyzer()
	collector := NewMetricsCollector("doc-counts")
	a.Analyze([]Section{
		{Lines: []string{"Développeur Backend chez Acme SARL", "2019 - 2022"}},
	}, collector)

	if got := collector.Metrics().TotalSectionsFound; got != 1 {
		t.Errorf("TotalSectionsFound = %d, want 1", got)
	}
}
