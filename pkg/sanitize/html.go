package sanitize

import (
	"regexp"
	"strings"
)

var (
	// Script and style blocks go wholesale, content included.
	scriptBlockRe = regexp.MustCompile(`(?is)<\s*(script|style)\b[^>]*>.*?<\s*/\s*(script|style)\s*>`)

	// Any remaining markup tag. The pattern requires a letter, slash, or !
	// right after '<' so free-standing comparisons like "5 < 10" survive.
	tagRe = regexp.MustCompile(`(?s)<\s*/?\s*[a-zA-Z!][^>]*>`)

	// Unterminated openings of executable elements. A truncated payload
	// like "<script src=" never hits tagRe because it has no '>', but a
	// browser would still honor it once more bytes arrive.
	danglingTagRe = regexp.MustCompile(`(?i)<\s*/?\s*(script|style|iframe|object|embed|svg)\b[^>]*`)

	// Dangerous URL schemes, wherever they appear. Browsers tolerate
	// whitespace between the scheme letters, so the match does too.
	schemeRe = regexp.MustCompile(`(?i)(j\s*a\s*v\s*a\s*s\s*c\s*r\s*i\s*p\s*t|v\s*b\s*s\s*c\s*r\s*i\s*p\s*t|d\s*a\s*t\s*a)\s*:`)
)

// SanitizeHTML strips markup and dangerous protocol schemes from untrusted
// text so stored or reflected content cannot execute script in a browser.
// It cleans rather than rejects: legitimate partial content like "5 < 10"
// is preserved.
//
// Stripping runs to a fixpoint, so fragments reassembled by a removal
// (e.g. "<scr<script>ipt>") are stripped again on the next pass. Every pass
// only deletes, which makes the function idempotent:
// SanitizeHTML(SanitizeHTML(x)) == SanitizeHTML(x).
func SanitizeHTML(input string) string {
	out := stripControlChars(input)

	for {
		next := stripOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func stripOnce(s string) string {
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = danglingTagRe.ReplaceAllString(s, "")
	s = schemeRe.ReplaceAllString(s, "")
	return s
}

// stripControlChars removes null bytes and control characters other than
// common whitespace.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
