// Package rubric normalizes free-form grade designators into grade bands
// and maps each band to a fixed grading-expectation summary.
package rubric

import (
	"strconv"
	"strings"
)

// Band is the normalized educational level bucket.
type Band string

const (
	BandUnspecified Band = "unspecified"
	BandElementary  Band = "K-5"
	BandMiddle      Band = "6-8"
	BandHigh        Band = "9-12"
	BandAdvanced    Band = "advanced"
)

var summaries = map[Band]string{
	BandElementary: "Focus on sentence mechanics, spelling, and staying on topic. " +
		"Look for a clear topic sentence and simple supporting details. Celebrate effort.",
	BandMiddle: "Expect a stated thesis with paragraphs organized around supporting evidence. " +
		"Look for transitions between ideas and at least one cited example per claim.",
	BandHigh: "Expect a clear, arguable thesis, depth of analysis beyond summary, integrated " +
		"evidence, and a consistent academic tone. Weigh counterargument handling.",
	BandAdvanced: "Apply college-preparatory standards: sophisticated argumentation, precise " +
		"diction, disciplined structure, and critical engagement with sources.",
	BandUnspecified: "Grade level unknown: give balanced, encouraging feedback on structure, " +
		"clarity, and evidence without assuming advanced skills.",
}

// Normalize maps an arbitrary caller-supplied designator to one band.
// Precedence: first run of 1-2 digits anywhere in the input wins and is
// parsed as an integer grade; else keyword containment (k, elementary,
// middle, high); else unspecified.
func Normalize(designator string) Band {
	s := strings.ToLower(strings.TrimSpace(designator))
	if s == "" {
		return BandUnspecified
	}

	if n, ok := firstNumber(s); ok {
		switch {
		case n <= 5:
			return BandElementary
		case n <= 8:
			return BandMiddle
		case n <= 12:
			return BandHigh
		default:
			return BandAdvanced
		}
	}

	switch {
	case strings.Contains(s, "k"):
		return BandElementary
	case strings.Contains(s, "elementary"):
		return BandElementary
	case strings.Contains(s, "middle"):
		return BandMiddle
	case strings.Contains(s, "high"):
		return BandHigh
	case strings.Contains(s, "advanced"), strings.Contains(s, "college"):
		return BandAdvanced
	}
	return BandUnspecified
}

// Summarize returns the grading-expectation text for a designator. The
// returned string is injected verbatim into prompts.
func Summarize(designator string) string {
	return summaries[Normalize(designator)]
}

// Summary returns the fixed expectation text for an already-normalized band.
func Summary(band Band) string {
	if s, ok := summaries[band]; ok {
		return s
	}
	return summaries[BandUnspecified]
}

// firstNumber extracts the first run of 1-2 digits as an integer.
func firstNumber(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return 0, false
	}
	end := start
	for end < len(s) && end-start < 2 && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
