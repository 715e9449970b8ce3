// Package sanitize cleans free text before it is stored or sent to a lead.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`[ \t\r\f\v]+`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
)

// StripHTML removes tags, decodes the common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text cleans user-provided notes on history rows and follow-ups.
func Text(s string) string {
	return StripHTML(s)
}

// Placeholder cleans a value substituted into an outbound message. Braces
// are dropped so a value cannot smuggle in another placeholder.
func Placeholder(s string) string {
	s = StripHTML(s)
	s = strings.NewReplacer("{{", "", "}}", "").Replace(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
