package slug

import (
	"regexp"
	"strings"
)

var (
	nonSlugChars    = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	hyphenRuns      = regexp.MustCompile(`-+`)
	edgeHyphens     = regexp.MustCompile(`^-+|-+$`)
	defaultSlugBody = ""
)

// Make derives a URL slug from a title: lowercase, strip anything outside
// [a-z0-9 -], collapse whitespace to hyphens, collapse hyphen runs, trim
// edge hyphens. May return "" for titles with no usable characters.
func Make(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = nonSlugChars.ReplaceAllString(s, defaultSlugBody)
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = edgeHyphens.ReplaceAllString(s, "")
	return s
}

// NormalizeNamespace lowercases a namespace, defaulting empty input to "main".
func NormalizeNamespace(namespace string) string {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return "main"
	}
	return strings.ToLower(ns)
}
