package content

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict policy strips all HTML, shared and read-only
var stripPolicy = bluemonday.StrictPolicy()

// CleanString strips HTML markup and newlines from headline fields.
// Source metadata often embeds tags in titles and descriptions.
func CleanString(s string) string {
	cleaned := stripPolicy.Sanitize(s)
	cleaned = html.UnescapeString(cleaned) // sanitizing entity-escapes plain text
	cleaned = strings.ReplaceAll(cleaned, "\n", "")
	return strings.TrimSpace(cleaned)
}

// CleanKeywords title-cases keywords, drops empties and caps the result
func CleanKeywords(keywords []string, limit int) []string {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if limit > 0 && len(cleaned) == limit {
			break
		}
		cleaned = append(cleaned, titleCase(kw))
	}
	return cleaned
}

// titleCase uppercases the first letter of every word
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
