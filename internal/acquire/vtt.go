package acquire

import (
	"bufio"
	"html"
	"regexp"
	"strings"
)

var (
	vttTagRe    = regexp.MustCompile(`<[^>]*>`)
	vttCueIDRe  = regexp.MustCompile(`^\d+$`)
	vttSpacesRe = regexp.MustCompile(`\s+`)
)

// ParseVTT extracts the spoken text from a WebVTT document as one line of
// space-separated words. Inline timing and styling tags are dropped, and
// lines repeated by rolling auto-captions are emitted once.
func ParseVTT(doc string) string {
	var (
		out      []string
		skipping bool
	)
	sc := bufio.NewScanner(strings.NewReader(doc))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\uFEFF"))
		switch {
		case line == "":
			skipping = false
			continue
		case skipping:
			continue
		case strings.HasPrefix(line, "WEBVTT"),
			strings.HasPrefix(line, "Kind:"),
			strings.HasPrefix(line, "Language:"):
			continue
		case strings.HasPrefix(line, "NOTE"), line == "STYLE", line == "REGION":
			skipping = true
			continue
		case strings.Contains(line, "-->"), vttCueIDRe.MatchString(line):
			continue
		}

		text := html.UnescapeString(vttTagRe.ReplaceAllString(line, ""))
		text = strings.TrimSpace(vttSpacesRe.ReplaceAllString(text, " "))
		if text == "" {
			continue
		}
		if recent(out, text) {
			continue
		}
		out = append(out, text)
	}
	return strings.Join(out, " ")
}

// recent reports whether text is among the last few emitted lines; rolling
// captions only ever repeat the line immediately above.
func recent(out []string, text string) bool {
	for i := len(out) - 1; i >= 0 && i >= len(out)-2; i-- {
		if out[i] == text {
			return true
		}
	}
	return false
}
