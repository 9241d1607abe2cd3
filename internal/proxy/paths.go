package proxy

import (
	"path"
	"strings"
)

// PublicPaths is the set of path patterns that skip bearer-token auth.
// A pattern ending in "/*" is a prefix match; anything else is an exact
// match, per spec.md §4.3.
type PublicPaths []string

// IsPublic reports whether requestPath matches one of the public patterns.
// requestPath is canonicalized first (path.Clean) so "//x" and "/./x" match
// the same way "/x" would — spec.md §9 names this ambiguity and asks
// implementations to canonicalize before prefix-matching.
func (p PublicPaths) IsPublic(requestPath string) bool {
	clean := canonicalize(requestPath)
	for _, pattern := range p {
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if strings.HasPrefix(clean, prefix) || (strings.HasSuffix(requestPath, "/") && clean+"/" == prefix) {
				return true
			}
			continue
		}
		if clean == pattern {
			return true
		}
	}
	return false
}

func canonicalize(requestPath string) string {
	if requestPath == "" {
		return "/"
	}
	cleaned := path.Clean(requestPath)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

// targetService derives the logical service name from the path: the first
// segment after the given API prefix, per spec.md §4.3 step 3.
func targetService(requestPath, apiPrefix string) string {
	clean := canonicalize(requestPath)
	trimmed := strings.TrimPrefix(clean, apiPrefix)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.SplitN(trimmed, "/", 2)
	return segments[0]
}
