// Package sanitize cleans user-provided display text before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Text strips markup, decodes entities and collapses runs of whitespace.
// Entities are decoded before the second strip so encoded tags do not survive.
func Text(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = html.UnescapeString(out)
	out = tagPattern.ReplaceAllString(out, "")
	return strings.Join(strings.Fields(out), " ")
}
