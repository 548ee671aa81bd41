package cv

import (
	"testing"
)

func newTestInternshipHandler() *InternshipHandler {
	return NewInternshipHandler(DefaultInternshipConfig(), DefaultLexicon())
}

func TestIsInternship(t *testing.T) {
	h := newTestInternshipHandler()
	tests := []struct {
		name     string
		text     string
		org      string
		itemType string
		want     bool
	}{
		{
			name: "school in text",
			text: "Stage de fin d'études, École Centrale",
			want: true,
		},
		{
			name: "school in bound organization",
			text: "Alternance développeur backend",
			org:  "Université de Lyon",
			want: true,
		},
		{
			name:     "explicit internship item type",
			text:     "Software engineering internship",
			itemType: "internship",
			want:     true,
		},
		{
			// A stage at a named company is a normal experience.
			name:     "company internship left alone",
			text:     "Stage développeur chez Datadome SAS, 2022",
			org:      "Datadome",
			itemType: "experience",
			want:     false,
		},
		{
			name: "no internship term",
			text: "Développeur en CDI, Université de Lyon",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &CandidateItem{
				Text:     tt.text,
				ItemType: tt.itemType,
				Fields:   Fields{Organization: tt.org},
			}
			if got := h.IsInternship(item); got != tt.want {
				t.Errorf("IsInternship(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRebindToNearbyEmployer(t *testing.T) {
	h := newTestInternshipHandler()
	lines := []string{
		"EXPÉRIENCE",
		"Stage développeur chez Acme SARL", // credible employer one line away
		"Stage de six mois",                // the internship item
		"Missions: API REST, CI/CD",
	}
	item := &CandidateItem{
		Text:       "Stage de six mois",
		ItemType:   "experience",
		SourceLine: 2,
		Fields:     Fields{Organization: "Université de Lyon"},
	}

	collector := NewMetricsCollector("doc-intern")
	ic := h.Rebind(item, lines, collector)

	if ic.RebindDecision != "rebound" {
		t.Fatalf("decision = %q, employers = %+v", ic.RebindDecision, ic.PotentialEmployers)
	}
	if item.Fields.Organization != "Acme" || item.Fields.Company != "Acme" {
		t.Errorf("org = %q company = %q, want Acme", item.Fields.Organization, item.Fields.Company)
	}
	if ic.OriginalOrg != "Université de Lyon" {
		t.Errorf("original org = %q", ic.OriginalOrg)
	}
	if item.ItemType != "experience" {
		t.Errorf("ItemType = %q", item.ItemType)
	}
	found := false
	for _, w := range item.Warnings {
		if w == "internship_rebind_to_Acme" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v", item.Warnings)
	}
	report := collector.Export()
	if report.RoutingDecisions["internship→experience"] != 1 {
		t.Errorf("routing = %v", report.RoutingDecisions)
	}
}

func TestRebindRoutesToEducationWithoutEmployer(t *testing.T) {
	h := newTestInternshipHandler()
	lines := []string{
		"FORMATION",
		"Stage d'observation",
		"Université de Lyon", // school: not a credible employer
		"rien d'autre ici",
	}
	item := &CandidateItem{
		Text:       "Stage d'observation",
		ItemType:   "experience",
		SourceLine: 1,
	}

	ic := h.Rebind(item, lines, nil)

	if ic.RebindDecision != "routed_to_education" {
		t.Fatalf("decision = %q, employers = %+v", ic.RebindDecision, ic.PotentialEmployers)
	}
	if item.ItemType != "education" {
		t.Errorf("ItemType = %q, want education", item.ItemType)
	}
	hasTag := false
	for _, tag := range item.Fields.Tags {
		if tag == "work_integrated_learning" {
			hasTag = true
		}
	}
	if !hasTag {
		t.Errorf("tags = %v, want work_integrated_learning", item.Fields.Tags)
	}
	hasWarning := false
	for _, w := range item.Warnings {
		if w == "internship_routed_to_education" {
			hasWarning = true
		}
	}
	if !hasWarning {
		t.Errorf("warnings = %v", item.Warnings)
	}
}

func TestRebindBelowConfidenceRoutesToEducation(t *testing.T) {
	h := newTestInternshipHandler()
	// All-lowercase prose around the item: nothing clears the rebind bar.
	lines := []string{
		"Stagiaire",
		"aucune entreprise mentionnée ici",
		"ni sur cette ligne non plus",
	}
	item := &CandidateItem{Text: "Stagiaire", SourceLine: 0}

	ic := h.Rebind(item, lines, nil)
	if ic.RebindDecision != "routed_to_education" {
		t.Errorf("decision = %q, employers = %+v", ic.RebindDecision, ic.PotentialEmployers)
	}
}

func TestCalculateOrgConfidence(t *testing.T) {
	h := newTestInternshipHandler()
	tests := []struct {
		name    string
		org     string
		context string
		want    float64
	}{
		{"base", "Datadome", "Datadome recrute", 0.6},
		{"legal suffix", "Acme", "Acme SARL, Lyon", 0.7}, // +0.2 suffix, -0.1 short
		{"suffix and connector", "Datadome", "Stage chez Datadome SAS", 0.95},
		{"short name", "Bet", "Bet recrute", 0.5},
		{"lowercase", "acme", "travail pour acme", 0.5}, // +0.15 connector, -0.1 short, -0.15 lowercase
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.calculateOrgConfidence(tt.org, tt.context)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("confidence(%q in %q) = %.2f, want %.2f", tt.org, tt.context, got, tt.want)
			}
		})
	}
}

func TestFindPotentialEmployersOrdering(t *testing.T) {
	h := newTestInternshipHandler()
	lines := []string{
		"Alpha Digital company",   // weaker pattern
		"stage",                   // item line, excluded
		"Stage chez Datadome SAS", // suffix + connector
		"Beta Tech Solutions",     // bare multi-word name
	}
	got := h.findPotentialEmployers(lines, 1)
	if len(got) < 2 {
		t.Fatalf("employers = %+v", got)
	}
	if got[0].Name != "Datadome" {
		t.Errorf("top employer = %q, want Datadome (highest confidence)", got[0].Name)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Errorf("not sorted by confidence: %+v", got)
		}
	}
}

func TestFindPotentialEmployersProximityLimit(t *testing.T) {
	h := newTestInternshipHandler()
	lines := []string{
		"Acme SARL recrute chez Acme", // 3 lines above the item, out of reach
		"",
		"",
		"stage de découverte",
	}
	got := h.findPotentialEmployers(lines, 3)
	if len(got) != 0 {
		t.Errorf("employer beyond proximity window found: %+v", got)
	}
}

func TestProcessOnlyTouchesInternships(t *testing.T) {
	h := newTestInternshipHandler()
	lines := []string{
		"Développeur chez Acme SARL",
		"Stage développeur chez Datadome SAS",
		"Stage assistant, Université de Lille",
		"Beta Tech Solutions SAS",
	}
	items := []*CandidateItem{
		{Text: "Développeur senior", ItemType: "experience", SourceLine: 0},
		{Text: "Stage développeur chez Datadome SAS", ItemType: "experience", SourceLine: 1, Fields: Fields{Organization: "Datadome"}},
		{Text: "Stage assistant, Université de Lille", ItemType: "experience", SourceLine: 2},
	}

	out := h.Process(items, lines, nil)
	if len(out) != 1 {
		t.Fatalf("processed = %d, want 1", len(out))
	}
	if out[0].Item != items[2] {
		t.Error("wrong item processed")
	}
	if items[0].ItemType != "experience" || len(items[0].Warnings) != 0 {
		t.Errorf("non-internship item mutated: %+v", items[0])
	}
	// The company internship keeps its employer and type.
	if items[1].ItemType != "experience" || items[1].Fields.Organization != "Datadome" {
		t.Errorf("company internship mutated: %+v", items[1])
	}
}
