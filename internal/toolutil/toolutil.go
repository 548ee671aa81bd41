// Package toolutil provides shared helper functions for go_cv MCP tools.
package toolutil

import (
	"strings"

	"github.com/anatolykoptev/go_cv/internal/engine/cv"
)

// SectionsFromLines splits document lines into sections at blank-line
// runs, the fallback when no detector boundaries were supplied. Line
// indices stay relative to the original document.
func SectionsFromLines(lines []string) []cv.Section {
	var sections []cv.Section
	start := -1
	for i, l := range lines {
		blank := strings.TrimSpace(l) == ""
		if blank {
			if start >= 0 {
				sections = append(sections, cv.Section{
					Lines:     append([]string(nil), lines[start:i]...),
					StartLine: start,
				})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		sections = append(sections, cv.Section{
			Lines:     append([]string(nil), lines[start:]...),
			StartLine: start,
		})
	}
	return sections
}
