// Package passage bounds a transcript to a passage of at most N characters.
//
// Lengths are counted in Unicode code points after NFC normalization, so a
// limit means the same thing for precomposed and decomposed input.
package passage

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Ellipsis marks a passage cut at a word boundary or mid-word.
const Ellipsis = "..."

// Policy decides what happens when a compacted transcript exceeds the limit.
type Policy string

const (
	// PolicyTruncate cuts the transcript at the best boundary within the limit.
	PolicyTruncate Policy = "truncate"
	// PolicyReject fails the extraction stage.
	PolicyReject Policy = "reject"
	// PolicyModel asks the model to select the passage, then bounds its output.
	PolicyModel Policy = "model"
)

// Policies lists the accepted policy names.
var Policies = []Policy{PolicyTruncate, PolicyReject, PolicyModel}

// ParsePolicy accepts a policy name; empty means PolicyTruncate.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PolicyTruncate, nil
	}
	for _, known := range Policies {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown overflow policy %q (want truncate, reject or model)", s)
}

// Compact normalizes text to NFC and collapses every run of whitespace to a
// single space.
func Compact(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// Len returns the length of text in code points.
func Len(text string) int {
	return len([]rune(text))
}

// Truncate returns text unchanged when it fits in maxChars. Otherwise the
// result is at most maxChars code points, cut (in order of preference) at:
//  1. The last sentence end (. ! ?) in the second half of the window
//  2. The last whitespace, followed by Ellipsis
//  3. A hard cut, followed by Ellipsis
//
// maxChars <= 0 means unlimited.
func Truncate(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}

	room := maxChars - len(Ellipsis)
	if room < 1 {
		return string(runes[:maxChars])
	}

	if end := sentenceEnd(runes[:maxChars]); end >= maxChars/2 {
		return strings.TrimSpace(string(runes[:end]))
	}

	window := runes[:room]
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			if head := strings.TrimSpace(string(window[:i])); head != "" {
				return head + Ellipsis
			}
			break
		}
	}
	return string(window) + Ellipsis
}

// sentenceEnd returns the rune count up to and including the last sentence
// terminator that is followed by whitespace or ends the window, or 0.
func sentenceEnd(runes []rune) int {
	for i := len(runes) - 1; i > 0; i-- {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// Skip "..." runs; an ellipsis is not a sentence end.
		if r == '.' && runes[i-1] == '.' {
			continue
		}
		return i + 1
	}
	return 0
}

// OverLimitError reports a transcript that exceeds the passage bound under
// PolicyReject, or that is too large even for model selection.
type OverLimitError struct {
	Length int
	Limit  int
}

func (e *OverLimitError) Error() string {
	return fmt.Sprintf("transcript has %d characters, limit is %d", e.Length, e.Limit)
}
