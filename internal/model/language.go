package model

import "golang.org/x/text/language"

// NormalizeLanguageTags parses and canonicalizes each entry of tags as a
// BCP 47 language tag (e.g. "EN" -> "en", "en-us" -> "en-US"), dropping any entry
// that doesn't parse as one rather than failing the whole call — scraped
// "languages" fields are free text as often as they're a real tag.
func NormalizeLanguageTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		tag, err := language.Parse(t)
		if err != nil {
			continue
		}
		canonical := tag.String()
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}
