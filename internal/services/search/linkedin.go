// Package search turns generated queries into deduplicated profile URLs via a
// pluggable search provider.
package search

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// profileSlugPattern matches the path of a public profile URL. Slugs shorter
// than five characters are provider noise (country hubs, redirects).
var profileSlugPattern = regexp.MustCompile(`linkedin\.com/in/([a-zA-Z0-9\-_%]{5,})`)

// IsProfileURL reports whether the raw URL points at an individual profile
// rather than a company page, post, or search result.
func IsProfileURL(raw string) bool {
	return profileSlugPattern.MatchString(raw)
}

// NormalizeProfileURL canonicalizes a profile URL so the same person surfaced
// by different queries deduplicates to one record: scheme and host are fixed,
// tracking parameters and fragments are dropped, and the slug keeps its
// original casing (slugs are case-sensitive identifiers).
func NormalizeProfileURL(raw string) (string, error) {
	matches := profileSlugPattern.FindStringSubmatch(raw)
	if matches == nil {
		return "", fmt.Errorf("not a profile URL: %s", raw)
	}

	slug := strings.TrimRight(matches[1], "/")
	if decoded, err := url.PathUnescape(slug); err == nil {
		slug = decoded
	}

	return "https://www.linkedin.com/in/" + slug, nil
}
