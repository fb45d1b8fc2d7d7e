package agents

import (
	"regexp"
	"strings"
)

// Preprocess collapses whitespace so previews, word counts and substring
// checks all see the same text.
func Preprocess(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	lines := strings.Split(s, "\n")
	var out []string
	for _, ln := range lines {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var (
	enumerationRe = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*•])\s+\S`)
	ordinalRe     = regexp.MustCompile(`(?i)\b(first|second|third|finally|next step)\b[,:]?`)
	capitalTermRe = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)
)

var comparisonMarkers = []string{
	" versus ", " vs. ", " vs ", "compared to", "compared with",
	"in contrast", "whereas", "on the other hand",
}

// hasStructuralSignals reports whether a text unit shows the shape of
// visualizable content: enumerations, comparison markers or multi-word
// capitalized terms. Used for the evaluator's no-judgment fast path.
func hasStructuralSignals(text string) bool {
	if enumerationRe.MatchString(text) {
		return true
	}
	if len(ordinalRe.FindAllString(text, 3)) >= 2 {
		return true
	}
	lower := strings.ToLower(text)
	for _, m := range comparisonMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return len(capitalTermRe.FindAllString(text, 4)) >= 3
}

// normalizeForMatch lowercases and collapses whitespace for substring
// verification between a proposed segment and its source section.
func normalizeForMatch(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// leadingSpanInSource verifies that the first words of candidate appear
// verbatim (modulo whitespace and case) inside source.
func leadingSpanInSource(source, candidate string, spanWords int) bool {
	words := strings.Fields(candidate)
	if len(words) == 0 {
		return false
	}
	if len(words) > spanWords {
		words = words[:spanWords]
	}
	span := normalizeForMatch(strings.Join(words, " "))
	return strings.Contains(normalizeForMatch(source), span)
}
