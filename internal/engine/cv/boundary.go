package cv

import (
	"log/slog"
	"sort"
	"strings"
)

// CompositeBoundaries is the bundled form some upstream detectors emit:
// the boundary list plus detector metrics and flags. Normalization only
// needs the boundaries.
type CompositeBoundaries struct {
	Boundaries []Boundary     `json:"boundaries"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	Flags      map[string]any `json:"flags,omitempty"`
}

// BoundaryStats summarizes what normalization did to a boundary set.
type BoundaryStats struct {
	OverlapsBefore int `json:"overlaps_before"`
	OverlapsAfter  int `json:"overlaps_after"`
	Dropped        int `json:"dropped"`
	Merged         int `json:"merged"`
}

// DefaultMergeMaxGap is the largest line gap bridged when merging
// same-type neighbors.
const DefaultMergeMaxGap = 3

// NormalizeBoundaries coerces any supported boundary representation into a
// clean, sorted, non-overlapping boundary set. Malformed elements are
// dropped with a warning; the function never fails.
func NormalizeBoundaries(input any) []Boundary {
	bs, _ := NormalizeBoundariesStats(input)
	return bs
}

// NormalizeBoundariesStats is NormalizeBoundaries plus before/after overlap
// counts for the extraction report.
func NormalizeBoundariesStats(input any) ([]Boundary, BoundaryStats) {
	return NormalizeBoundariesGap(input, DefaultMergeMaxGap)
}

// NormalizeBoundariesGap normalizes with a caller-supplied merge gap, the
// tunable the pipeline threads through from its options.
func NormalizeBoundariesGap(input any, maxGap int) ([]Boundary, BoundaryStats) {
	var stats BoundaryStats
	if maxGap <= 0 {
		maxGap = DefaultMergeMaxGap
	}

	raw, dropped := coerceBoundaries(input)
	stats.Dropped = dropped

	merged := MergeAdjacentHomonymousSections(raw, maxGap)
	stats.Merged = len(raw) - len(merged)

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Start != merged[j].Start {
			return merged[i].Start < merged[j].Start
		}
		return merged[i].End < merged[j].End
	})
	stats.OverlapsBefore = CountOverlaps(merged)

	resolved := resolveAllOverlaps(merged)
	stats.OverlapsAfter = CountOverlaps(resolved)

	if stats.OverlapsBefore > 0 {
		slog.Info("boundary overlaps resolved",
			slog.Int("before", stats.OverlapsBefore),
			slog.Int("after", stats.OverlapsAfter),
		)
	}
	return resolved, stats
}

// coerceBoundaries unwraps composite input and validates each element.
// Returns the valid boundaries and the number of dropped elements.
func coerceBoundaries(input any) ([]Boundary, int) {
	switch v := input.(type) {
	case nil:
		return nil, 0
	case []Boundary:
		return validateElements(v)
	case CompositeBoundaries:
		return validateElements(v.Boundaries)
	case *CompositeBoundaries:
		if v == nil {
			return nil, 0
		}
		return validateElements(v.Boundaries)
	case []any:
		// Composite bundle: a list whose first element is the boundary
		// list and whose trailing elements are metric/flag maps. A plain
		// sequence of loose tuples never has maps in those positions.
		if len(v) >= 3 && isMapLike(v[1]) && isMapLike(v[2]) {
			if inner, ok := v[0].([]any); ok {
				return coerceLoose(inner)
			}
			if inner, ok := v[0].([]Boundary); ok {
				return validateElements(inner)
			}
		}
		return coerceLoose(v)
	default:
		slog.Warn("boundaries: unsupported input shape, ignoring")
		return nil, 1
	}
}

func isMapLike(e any) bool {
	switch e.(type) {
	case map[string]any, map[any]any:
		return true
	}
	return false
}

// coerceLoose converts []any elements (slices of numbers, maps) into boundaries.
func coerceLoose(elems []any) ([]Boundary, int) {
	var out []Boundary
	dropped := 0
	for _, e := range elems {
		b, ok := coerceElement(e)
		if !ok {
			dropped++
			slog.Warn("boundaries: dropping malformed element")
			continue
		}
		out = append(out, b)
	}
	validated, d2 := validateElements(out)
	return validated, dropped + d2
}

func coerceElement(e any) (Boundary, bool) {
	switch v := e.(type) {
	case Boundary:
		return v, true
	case []any:
		if len(v) < 2 {
			return Boundary{}, false
		}
		start, ok1 := toInt(v[0])
		end, ok2 := toInt(v[1])
		if !ok1 || !ok2 {
			return Boundary{}, false
		}
		b := Boundary{Start: start, End: end, SectionType: "unknown"}
		if len(v) >= 3 {
			if s, ok := v[2].(string); ok && s != "" {
				b.SectionType = s
			}
		}
		return b, true
	case map[string]any:
		start, ok1 := toInt(v["start"])
		end, ok2 := toInt(v["end"])
		if !ok1 || !ok2 {
			return Boundary{}, false
		}
		b := Boundary{Start: start, End: end, SectionType: "unknown"}
		if s, ok := v["section_type"].(string); ok && s != "" {
			b.SectionType = s
		}
		return b, true
	default:
		return Boundary{}, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

// validateElements drops boundaries with invalid indices and defaults
// empty section types to "unknown".
func validateElements(bs []Boundary) ([]Boundary, int) {
	out := make([]Boundary, 0, len(bs))
	dropped := 0
	for _, b := range bs {
		if b.Start < 0 || b.End < b.Start {
			dropped++
			slog.Warn("boundaries: dropping invalid range",
				slog.Int("start", b.Start), slog.Int("end", b.End))
			continue
		}
		if b.SectionType == "" {
			b.SectionType = "unknown"
		}
		out = append(out, b)
	}
	return out, dropped
}

// MergeAdjacentHomonymousSections merges neighbors of the same section type
// separated by at most maxGap lines. Merging is skipped when the combined
// span exceeds 50 lines, the size ratio exceeds 5.0, or the type is too
// weak to trust (strength < 3).
func MergeAdjacentHomonymousSections(bs []Boundary, maxGap int) []Boundary {
	if len(bs) < 2 {
		return append([]Boundary(nil), bs...)
	}

	sorted := append([]Boundary(nil), bs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := []Boundary{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &out[len(out)-1]
		if canMerge(*cur, next, maxGap) {
			if next.End > cur.End {
				cur.End = next.End
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

func canMerge(a, b Boundary, maxGap int) bool {
	if !strings.EqualFold(a.SectionType, b.SectionType) {
		return false
	}
	if SectionStrength(strings.ToLower(a.SectionType)) < 3 {
		return false
	}
	gap := b.Start - a.End
	if gap < 0 {
		gap = 0
	}
	if gap > maxGap {
		return false
	}
	combined := maxInt(a.End, b.End) - a.Start
	if combined > 50 {
		return false
	}
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return true
	}
	ratio := float64(la) / float64(lb)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio <= 5.0
}

// resolveAllOverlaps walks the sorted list resolving each overlapping pair
// until none remain. Resolution can shrink or drop boundaries, so the walk
// re-sorts and re-checks after every change.
func resolveAllOverlaps(bs []Boundary) []Boundary {
	out := append([]Boundary(nil), bs...)
	for i := 0; i < len(out)-1; {
		a, b := out[i], out[i+1]
		if !a.Overlaps(b) {
			i++
			continue
		}
		resolved := resolveBoundaryOverlap(a, b)
		out = append(out[:i], append(resolved, out[i+2:]...)...)
		sort.Slice(out, func(x, y int) bool {
			if out[x].Start != out[y].Start {
				return out[x].Start < out[y].Start
			}
			return out[x].End < out[y].End
		})
		if i > 0 {
			i--
		}
	}
	return out
}

// resolveBoundaryOverlap keeps the stronger boundary whole and truncates the
// weaker one to its non-overlapping remainder. A weaker boundary fully
// contained in the stronger one is dropped. Equal strength: larger span wins.
func resolveBoundaryOverlap(a, b Boundary) []Boundary {
	sa := SectionStrength(strings.ToLower(a.SectionType))
	sb := SectionStrength(strings.ToLower(b.SectionType))

	strong, weak := a, b
	if sb > sa || (sb == sa && b.Len() > a.Len()) {
		strong, weak = b, a
	}

	var out []Boundary
	out = append(out, strong)

	switch {
	case weak.Start < strong.Start && weak.End > strong.End:
		// Weak straddles strong: keep the leading remainder.
		out = append(out, Boundary{Start: weak.Start, End: strong.Start, SectionType: weak.SectionType})
	case weak.Start < strong.Start:
		out = append(out, Boundary{Start: weak.Start, End: strong.Start, SectionType: weak.SectionType})
	case weak.End > strong.End:
		out = append(out, Boundary{Start: strong.End, End: weak.End, SectionType: weak.SectionType})
	default:
		// Fully contained: dropped.
	}

	// Drop empty remainders.
	kept := out[:0]
	for _, r := range out {
		if r.End > r.Start {
			kept = append(kept, r)
		}
	}
	return kept
}

// CountOverlaps counts overlapping pairs in a boundary set.
func CountOverlaps(bs []Boundary) int {
	n := 0
	for i := 0; i < len(bs); i++ {
		for j := i + 1; j < len(bs); j++ {
			if bs[i].Overlaps(bs[j]) {
				n++
			}
		}
	}
	return n
}

// ValidateBoundaryIndices drops boundaries that fall outside the document.
// Never errors: out-of-range boundaries are clamped when salvageable,
// dropped otherwise.
func ValidateBoundaryIndices(bs []Boundary, maxLines int) []Boundary {
	out := make([]Boundary, 0, len(bs))
	for _, b := range bs {
		if b.Start < 0 || b.Start >= maxLines || b.End < b.Start {
			slog.Warn("boundaries: dropping out-of-range boundary",
				slog.Int("start", b.Start), slog.Int("end", b.End), slog.Int("max_lines", maxLines))
			continue
		}
		if b.End > maxLines {
			b.End = maxLines
		}
		out = append(out, b)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
