// Package cv implements the résumé extraction core: boundary guards,
// triad scoring, the AI gate, internship rebinding, structure analysis,
// and per-document decision metrics.
package cv

// Boundary is a half-open line range [Start, End) tagged with a section type.
type Boundary struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	SectionType string `json:"section_type"`
}

// Len returns the number of lines the boundary covers.
func (b Boundary) Len() int { return b.End - b.Start }

// Overlaps reports whether b and o share at least one line.
func (b Boundary) Overlaps(o Boundary) bool {
	return b.Start < o.End && o.Start < b.End
}

// sectionStrength ranks section types for overlap resolution and merging.
// Higher wins. Unknown or unlisted types rank lowest.
var sectionStrength = map[string]int{
	"experience":     9,
	"work":           9,
	"education":      8,
	"formation":      8,
	"skills":         7,
	"projects":       6,
	"certifications": 5,
	"languages":      4,
	"interests":      3,
	"contact":        2,
	"unknown":        1,
}

// SectionStrength returns the priority rank for a section type.
func SectionStrength(sectionType string) int {
	if s, ok := sectionStrength[sectionType]; ok {
		return s
	}
	return 1
}

// BBox is a layout bounding box in page coordinates.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// StructureFlags carries layout signals attached to a section by the
// structure analyzer. Downstream stages treat them as hints, not commands.
type StructureFlags struct {
	IsSidebar        bool     `json:"is_sidebar"`
	IsTimeline       bool     `json:"is_timeline"`
	ColumnID         int      `json:"column_id"`
	ReadingOrder     string   `json:"reading_order"` // ltr, rtl, ttb
	SectionKindGuess string   `json:"section_kind_guess"`
	GuardMaskRanges  [][2]int `json:"guard_mask_ranges,omitempty"`
	IsQuarantined    bool     `json:"is_quarantined"`
	MergeCandidate   bool     `json:"merge_candidate"`
}

// Section is a contiguous block of document lines plus its layout flags.
type Section struct {
	Lines     []string       `json:"lines"`
	StartLine int            `json:"start_line"`
	BBox      *BBox          `json:"bbox,omitempty"`
	Flags     StructureFlags `json:"flags"`
}

// FieldUnknown marks a field whose original value was contaminated and relocated.
const FieldUnknown = "UNKNOWN"

// Fields holds the structured fields of an extracted candidate item.
type Fields struct {
	Title        string   `json:"title,omitempty"`
	Company      string   `json:"company,omitempty"`
	Role         string   `json:"role,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Description  string   `json:"description,omitempty"`
	Dates        []string `json:"dates,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Candidate statuses, the values downstream field mappers consume.
const (
	StatusPending   = "pending"
	StatusOK        = "ok"
	StatusUncertain = "uncertain"
	StatusRejected  = "rejected"
)

// Routing decisions issued by the parser-mapper. Decisions are recorded in
// the decision log and routing counters; the item itself carries only its
// status and item type.
const (
	DecisionAccepted          = "accepted"
	DecisionRoutedToEducation = "routed_to_education"
	DecisionUncertain         = "uncertain"
	DecisionRejected          = "rejected"
)

// CandidateItem is one extracted item moving through routing and gating.
type CandidateItem struct {
	Text            string     `json:"text"`
	ItemType        string     `json:"item_type"` // experience, education, ...
	Fields          Fields     `json:"fields"`
	Triad           TriadScore `json:"triad"`
	Status          string     `json:"status"`
	Warnings        []string   `json:"warnings,omitempty"`
	OriginalSection string     `json:"original_section,omitempty"`
	SourceLine      int        `json:"source_line"`
}

// TriadScore holds the three evidence confidences and their association.
type TriadScore struct {
	DateConf   float64 `json:"date_conf"`
	RoleConf   float64 `json:"role_conf"`
	OrgConf    float64 `json:"org_conf"`
	AssocScore float64 `json:"assoc_score"`
}

// IsValidTriad reports whether all three evidence kinds are present.
func (t TriadScore) IsValidTriad() bool {
	return t.DateConf > 0 && t.RoleConf > 0 && t.OrgConf > 0
}

// OverallScore combines the triad into one score. Role evidence weighs
// heaviest; a missing component zeroes the whole score.
func (t TriadScore) OverallScore() float64 {
	if !t.IsValidTriad() {
		return 0
	}
	return (t.DateConf*0.3 + t.RoleConf*0.4 + t.OrgConf*0.3) * t.AssocScore
}

// EmployerCandidate is a potential employer found near an internship item.
type EmployerCandidate struct {
	Name         string  `json:"name"`
	Confidence   float64 `json:"confidence"`
	LineDistance int     `json:"line_distance"`
}

// InternshipCandidate tracks an internship item through org rebinding.
type InternshipCandidate struct {
	Item               *CandidateItem      `json:"item"`
	OriginalOrg        string              `json:"original_org"`
	PotentialEmployers []EmployerCandidate `json:"potential_employers,omitempty"`
	RebindDecision     string              `json:"rebind_decision"` // rebound, routed_to_education, kept
	RebindTarget       string              `json:"rebind_target,omitempty"`
	RebindConfidence   float64             `json:"rebind_confidence"`
}
