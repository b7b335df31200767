// Package urlnorm validates, resolves, and normalizes URLs per spec §6:
// lower(scheme)://lower(host)/path_no_trailing_slash?query_preserved, with
// fragments removed.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrEmptyURL   = errors.New("URL cannot be empty")
)

// IsValidURL reports whether rawURL parses as an absolute http/https URL
// with a non-empty host (spec §4.2 step 1 and §4.2 step 10 link filter).
func IsValidURL(rawURL string) bool {
	if rawURL = strings.TrimSpace(rawURL); rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	return parsed.Host != ""
}

// ExtractDomain returns the hostname (without port) of rawURL.
func ExtractDomain(rawURL string) (string, error) {
	if rawURL = strings.TrimSpace(rawURL); rawURL == "" {
		return "", ErrEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return "", ErrInvalidURL
	}

	return hostname, nil
}

// ResolveURL resolves relativeURL against baseURL, producing an absolute URL.
func ResolveURL(baseURL, relativeURL string) (string, error) {
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		return "", fmt.Errorf("base URL cannot be empty")
	}
	if relativeURL = strings.TrimSpace(relativeURL); relativeURL == "" {
		return "", fmt.Errorf("relative URL cannot be empty")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	relative, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse relative URL: %w", err)
	}

	return base.ResolveReference(relative).String(), nil
}

// Normalize applies spec §6's normalization rule: lower-case scheme and
// host, strip the fragment, strip a trailing slash from the path (except
// root), preserve the query string.
func Normalize(rawURL string) (string, error) {
	if rawURL = strings.TrimSpace(rawURL); rawURL == "" {
		return "", ErrEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// ShouldSkipURL reports whether an anchor href uses a scheme that is never
// worth resolving (javascript:, mailto:, etc.) or is a bare fragment.
func ShouldSkipURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return true
	}

	lowerURL := strings.ToLower(rawURL)
	skipPrefixes := []string{
		"javascript:",
		"mailto:",
		"tel:",
		"ftp:",
		"file:",
		"data:",
		"#",
	}

	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lowerURL, prefix) {
			return true
		}
	}

	return false
}

// MatchesDomainRestriction reports whether host satisfies a substring
// domain restriction (spec §4.2 step 10: "require it to appear in the host
// substring-wise"). An empty restriction always matches.
func MatchesDomainRestriction(host, restriction string) bool {
	if restriction == "" {
		return true
	}
	return strings.Contains(host, restriction)
}
