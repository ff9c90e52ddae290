package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// analysisMarkers flag a line as the model's English scratch reasoning rather
// than final Korean prose. Tuned to Solar-Pro3 trace output; kept as data so
// the list can evolve without touching the scan logic.
var analysisMarkers = []string{
	"Let's", "Actually", "Check", "Count", "Wait",
	"characters:", "indices:", "=>", "That's", "We need",
	"Must be", "should be", "Potential", "syllable",
	"String:", "Proposed", "compliance",
}

var arithmeticLine = regexp.MustCompile(`^[\d\s+\-=*/<>().,]+$`)

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// ExtractKoreanTail recovers the final Korean answer from a reasoning trace.
//
// Solar-Pro3 sometimes emits its scratch analysis as the primary output and
// leaves the clean answer as the trailing Korean block of the trace. The
// trace is scanned backward line by line: Korean-dominant lines (three or
// more Hangul syllables) start and extend the block; once the block has
// started, hitting an analytical or purely arithmetic line ends it, except
// that short lines and markdown bullets/headings are tolerated inside the
// block. If no Korean block is found the raw trace is returned unchanged,
// so this never fails harder than the input.
func ExtractKoreanTail(trace string) string {
	lines := strings.Split(trace, "\n")

	var block []string
	foundKorean := false

scan:
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		stripped := strings.TrimSpace(line)

		if stripped == "" {
			if foundKorean {
				block = append(block, line)
			}
			continue
		}

		isKorean := hangulCount(stripped) >= 3
		isAnalysis := isAnalysisLine(stripped)
		isMath := arithmeticLine.MatchString(stripped)

		switch {
		case isKorean:
			foundKorean = true
			block = append(block, line)
		case foundKorean && !isAnalysis && !isMath:
			// Punctuation, dividers, bullets and headings belong to the block.
			if utf8.RuneCountInString(stripped) < 5 ||
				strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, "-") {
				block = append(block, line)
			} else {
				break scan
			}
		case foundKorean:
			break scan
		}
	}

	if len(block) == 0 {
		return trace
	}

	// The block was collected tail-first.
	for i, j := 0, len(block)-1; i < j; i, j = i+1, j-1 {
		block[i], block[j] = block[j], block[i]
	}
	for len(block) > 0 && strings.TrimSpace(block[0]) == "" {
		block = block[1:]
	}
	for len(block) > 0 && strings.TrimSpace(block[len(block)-1]) == "" {
		block = block[:len(block)-1]
	}

	result := strings.Join(block, "\n")
	result = excessBlankLines.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// isAnalysisLine reports whether a line is clearly English reasoning: ASCII
// letters with no Hangul at all, or any known discourse marker.
func isAnalysisLine(stripped string) bool {
	if hangulCount(stripped) == 0 && hasASCIILetter(stripped) {
		return true
	}
	for _, marker := range analysisMarkers {
		if strings.Contains(stripped, marker) {
			return true
		}
	}
	return false
}

func hangulCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '가' && r <= '힣' {
			n++
		}
	}
	return n
}

func hasASCIILetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
