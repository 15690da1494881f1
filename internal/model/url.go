package model

import (
	"strings"
)

// MakeAbsoluteURL resolves relative against base the way an extension's
// scraped href values need resolving:
//
//   - absolute http(s) URLs pass through unchanged
//   - scheme-relative ("//host/path") gets an "https:" prefix
//   - root-relative ("/path") is combined with base's origin
//   - anything else is resolved against base's directory
func MakeAbsoluteURL(relative, base string) string {
	if isAbsoluteHTTP(relative) {
		return relative
	}
	if strings.HasPrefix(relative, "//") {
		return "https:" + relative
	}
	if strings.HasPrefix(relative, "/") {
		return origin(base) + relative
	}
	return directory(base) + "/" + relative
}

func isAbsoluteHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// origin returns "scheme://host" for base, or "" if base isn't a
// recognizable absolute URL.
func origin(base string) string {
	idx := strings.Index(base, "://")
	if idx < 0 {
		return ""
	}
	rest := base[idx+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return base[:idx+3] + rest
}

// directory returns base with its final path segment (after the last
// "/") stripped, stopping no shorter than the origin.
func directory(base string) string {
	o := origin(base)
	if o == "" {
		if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
			return base[:idx]
		}
		return base
	}
	rest := base[len(o):]
	if idx := strings.LastIndexByte(rest, '/'); idx >= 0 {
		return o + rest[:idx]
	}
	return o
}
