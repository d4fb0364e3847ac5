// Package postprocess removes common LLM artifacts from stage output.
//
// It is applied by the completion client to every response before the text
// becomes an artifact.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text in four phases and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Whole-response code fence removal
//  3. Preamble echo removal ("Here is the corrected transcript:")
//  4. Quote wrapping removal
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeCodeFence(text)
	text = removePreambles(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// Each tag variant is listed explicitly because RE2 has no backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: code fences ---

// fenceRe matches a response that is entirely one fenced block, with an
// optional info string (```text, ```markdown).
var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\r?\n(.*?)\r?\n?```$")

func removeCodeFence(text string) string {
	if m := fenceRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// --- Phase 3: preambles ---

// preamblePatterns match introductory phrases models prepend even when told
// not to. Each is anchored to the start and requires a colon.
var preamblePatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [corrected|translated|revised] transcript|translation|text|dialogue:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| your)? (?:corrected |translated |revised |cleaned(?:-up)? |turkish |final )?(?:transcript|translation|text|dialogue|passage|version)\s*:`),
	// "[The] [corrected|translated] transcript|translation|text:"
	regexp.MustCompile(`(?i)^(?:the )?(?:corrected |translated |revised )(?:transcript|translation|text|dialogue|passage)\s*:`),
	// "Certainly / Sure / Of course[,] here is [the] ...:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the| your)? (?:corrected |translated |revised |final )?(?:transcript|translation|text|dialogue|passage|version)\s*:`),
}

func removePreambles(text string) string {
	for _, re := range preamblePatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 4: quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// single-line text is wrapped in them. Multi-line output is left alone since
// dialogue turns legitimately open and close with quotes.
//
//	"…"  '…'  «…»  “…”  ‘…’
func removeQuoteWrapping(text string) string {
	if strings.Contains(text, "\n") {
		return text
	}
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
