// Package urlnorm provides URL normalization, hashing, and domain scope
// checks for the crawl frontier. URLs are normalized before admission and
// before visited-lookup so that the same URL expressed differently produces
// the same hash, on the coordinator and on every worker.
package urlnorm

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"sort"
	"strings"
)

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// ErrUnsupportedScheme is returned for parseable URLs whose scheme is not
// http or https. Callers distinguish it from plain parse failures when
// classifying rejections.
var ErrUnsupportedScheme = errors.New("normalize url: scheme must be http or https")

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
	errEmptyHostInput      = errors.New("extract host: empty input")
)

// Normalize applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings: lowercase scheme and host,
// remove default ports, strip the fragment, strip the trailing slash from
// the path (except root), and sort query parameters. The transformation is
// idempotent. Schemes other than http and https are rejected.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawQuery = buildSortedQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)

	return parsed.String(), nil
}

// Hash returns the FNV-1a 32-bit hash of a normalized URL. The function is
// deterministic and stable across restarts; a collision makes a URL look
// already-visited, so collisions under-crawl but never double-crawl.
func Hash(normalized string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(normalized))

	return h.Sum32()
}

// Host returns the hostname (without port) from a URL, lowercased.
func Host(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyHostInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// HostAllowed reports whether a host passes the domain scope lists. A match
// in blocked always loses; a non-empty allowed list requires a match. When
// includeSubdomains is set, "news.example.com" matches the entry
// "example.com" on a dot boundary.
func HostAllowed(host string, allowed, blocked []string, includeSubdomains bool) bool {
	for _, domain := range blocked {
		if matchesDomain(host, domain, includeSubdomains) {
			return false
		}
	}

	if len(allowed) == 0 {
		return true
	}

	for _, domain := range allowed {
		if matchesDomain(host, domain, includeSubdomains) {
			return true
		}
	}

	return false
}

// matchesDomain checks host against a configured domain entry.
func matchesDomain(host, domain string, includeSubdomains bool) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	if host == domain {
		return true
	}

	return includeSubdomains && strings.HasSuffix(host, "."+domain)
}

// validateParsedURL checks that a parsed URL has a supported scheme and a host.
func validateParsedURL(u *url.URL) error {
	if u.Scheme == "" || u.Host == "" {
		return errMissingSchemeOrHost
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsupportedScheme
	}

	return nil
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" {
		return hostname
	}

	if defaultPort, ok := defaultPorts[strings.ToLower(u.Scheme)]; ok && port == defaultPort {
		return hostname
	}

	return hostname + ":" + port
}

// buildSortedQuery sorts parameters lexicographically by key, repeated values
// sorted within their key, and returns the encoded query string. Returns an
// empty string when there are no parameters.
func buildSortedQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)

		for j, val := range vals {
			if j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath strips the trailing slash while preserving the root "/".
// An empty path is canonicalized to "/" so that "http://a.com" and
// "http://a.com/" hash identically.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	return strings.TrimRight(p, "/")
}
