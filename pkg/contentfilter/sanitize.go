package contentfilter

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	scriptTagRe   = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	eventAttrRe   = regexp.MustCompile(`(?i)\s*on\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsProtocolRe  = regexp.MustCompile(`(?i)(javascript|vbscript)\s*:`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	markupProbeRe = regexp.MustCompile(`(?i)<\s*(script|iframe|object|embed)\b|\bon\w+\s*=|javascript\s*:`)
)

// Sanitize strips scripts and markup, removes control characters, collapses
// whitespace and caps the result at maxLen runes. A non-positive maxLen
// disables the cap.
func Sanitize(s string, maxLen int) string {
	s = scriptTagRe.ReplaceAllString(s, "")
	s = eventAttrRe.ReplaceAllString(s, "")
	s = jsProtocolRe.ReplaceAllString(s, "")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	// Unescaping may reveal new tags.
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	return truncate(s, maxLen)
}

// Normalize prepares text for matching: NFKC, case folding and collapsed
// whitespace.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	// Casers are stateful and cannot be shared between goroutines.
	s = cases.Fold().String(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// truncate cuts s to maxLen runes, ending with an ellipsis when cut.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen == 1 {
		return string(runes[:1])
	}
	return strings.TrimSpace(string(runes[:maxLen-1])) + "…"
}

func hasActiveMarkup(s string) bool {
	return markupProbeRe.MatchString(s)
}
