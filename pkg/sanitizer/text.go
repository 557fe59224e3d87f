package sanitizer

import (
	"regexp"
	"strings"
)

var (
	lineBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe = regexp.MustCompile(`(?i)</(p|h[1-6])\s*>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&#34;", `"`,
		"&amp;", "&",
	)
)

// ToText converts an HTML body to its plain-text alternative.
//
// Line breaks and closing paragraph or heading tags become newlines, every
// other tag is removed, the standard HTML entities are decoded and runs of
// three or more newlines collapse to exactly two. The result is trimmed.
func ToText(html string) string {
	if html == "" {
		return ""
	}

	s := strings.ReplaceAll(html, "\r\n", "\n")
	s = lineBreakRe.ReplaceAllString(s, "\n")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = decodeEntities(s)
	s = newlineRunRe.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// decodeEntities decodes entities in a single left-to-right pass,
// so "&amp;lt;" becomes "&lt;" rather than "<".
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}

// SingleLine flattens text to one line, collapsing all whitespace runs to a
// single space. Used for email subjects.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
