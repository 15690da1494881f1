package storage

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern detects common block/inline tags, the same heuristic
// used to decide whether a scraped description or chapter snippet needs
// stripping before it's safe to feed to a full-text index.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// PlainTextExcerpt converts s to plain text for search indexing: HTML is
// rendered down to Markdown and then stripped of remaining Markdown
// punctuation, since bleve's index wants prose, not markup. Non-HTML
// input is returned unchanged (beyond whitespace trimming).
func PlainTextExcerpt(s string) string {
	if s == "" {
		return ""
	}
	if !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return strings.TrimSpace(s)
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return strings.TrimSpace(s)
	}

	return strings.TrimSpace(stripMarkdownPunctuation(markdown))
}

var markdownPunctuation = regexp.MustCompile(`[*_#` + "`" + `]+`)

func stripMarkdownPunctuation(s string) string {
	return markdownPunctuation.ReplaceAllString(s, "")
}
