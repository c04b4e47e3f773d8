// Package urlutil normalizes and classifies URLs for the link discoverer
// and country extractors.
package urlutil

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// Canonicalize applies a deterministic normalization to a URL, producing a
// canonical form.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - Query parameters are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl
	canonical.RawQuery = ""
	canonical.ForceQuery = false
	canonical.Fragment = ""
	canonical.RawFragment = ""

	normalized, err := purell.NormalizeURLString(canonical.String(),
		purell.FlagLowercaseScheme|purell.FlagLowercaseHost|purell.FlagRemoveDefaultPort|
			purell.FlagRemoveTrailingSlash|purell.FlagRemoveDotSegments|purell.FlagRemoveDuplicateSlashes)
	if err != nil {
		// purell only fails on inputs that did not parse as a URL; fall
		// back to the manual normalization.
		canonical.Scheme = lowerASCII(canonical.Scheme)
		canonical.Host = lowerASCII(canonical.Host)
		if len(canonical.Path) > 1 {
			canonical.Path = stripTrailingSlash(canonical.Path)
		}
		return canonical
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return canonical
	}
	// purell's trailing-slash removal also strips a root "/"; restore it
	if parsed.Path == "" && strings.HasPrefix(canonical.Path, "/") {
		parsed.Path = "/"
	}
	return *parsed
}

// RegistrableLabel returns the second-level domain label (e.g. "example"
// from "www.example.co.uk"), used for fuzzy matching of legal names
// against the domain.
func RegistrableLabel(host string) string {
	host = strings.TrimSuffix(lowerASCII(host), ".")
	host = strings.TrimPrefix(host, "www.")
	labels := strings.Split(host, ".")
	if len(labels) == 0 {
		return host
	}
	knownTwoLabelSuffixes := map[string]bool{
		"co.uk": true, "com.au": true, "co.jp": true, "com.br": true,
		"co.nz": true, "com.mx": true, "co.za": true,
	}
	if len(labels) >= 3 {
		last2 := strings.Join(labels[len(labels)-2:], ".")
		if knownTwoLabelSuffixes[last2] {
			return labels[len(labels)-3]
		}
	}
	if len(labels) >= 2 {
		return labels[len(labels)-2]
	}
	return labels[0]
}

// CcTLD returns the rightmost label of host, lowercased, e.g. "de" for
// "example.de".
func CcTLD(host string) string {
	host = strings.TrimSuffix(lowerASCII(host), ".")
	labels := strings.Split(host, ".")
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1]
}

// SameRegistrableDomain reports whether two hosts are the same host
// modulo a "www." prefix, used to exclude external-host links.
func SameRegistrableDomain(a, b string) bool {
	return strings.TrimPrefix(lowerASCII(a), "www.") == strings.TrimPrefix(lowerASCII(b), "www.")
}

// lowerASCII converts ASCII characters to lowercase without allocating
// when no uppercase characters are present.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
