// Package htmlparse extracts links and visible text from fetched HTML
// pages (spec §4.2 steps 6–10).
package htmlparse

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mohamedmostafam0/distracrawl/internal/urlnorm"
)

// LinkExtractor extracts and filters links, and pulls visible text, from
// HTML content.
type LinkExtractor struct {
	logger *slog.Logger
}

// NewLinkExtractor creates a new LinkExtractor instance.
func NewLinkExtractor(logger *slog.Logger) *LinkExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkExtractor{logger: logger}
}

// ExtractLinks extracts and filters links from HTML content. baseURL is
// used to resolve relative URLs to absolute URLs. Returns normalized,
// deduplicated absolute URLs.
func (le *LinkExtractor) ExtractLinks(baseURL, htmlContent string) ([]string, error) {
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if htmlContent = strings.TrimSpace(htmlContent); htmlContent == "" {
		le.logger.Debug("empty HTML content provided")
		return []string{}, nil
	}

	if !urlnorm.IsValidURL(baseURL) {
		return nil, fmt.Errorf("invalid base URL: %s", baseURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML content: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	var totalFound, validCount int

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}

		totalFound++
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		if urlnorm.ShouldSkipURL(href) {
			return
		}

		var absoluteURL string
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			absoluteURL = href
		} else {
			resolved, err := urlnorm.ResolveURL(baseURL, href)
			if err != nil {
				le.logger.Debug("failed to resolve relative URL", "href", href, "error", err)
				return
			}
			absoluteURL = resolved
		}

		if !urlnorm.IsValidURL(absoluteURL) {
			return
		}

		normalized, err := urlnorm.Normalize(absoluteURL)
		if err != nil {
			le.logger.Debug("failed to normalize URL", "url", absoluteURL, "error", err)
			return
		}

		if seen[normalized] {
			return
		}
		seen[normalized] = true

		links = append(links, normalized)
		validCount++
	})

	le.logger.Debug("link extraction completed",
		"total_found", totalFound,
		"valid_count", validCount,
		"base_url", baseURL)

	return links, nil
}

// ExtractLinksWithDomainRestriction extracts links from htmlContent and
// keeps only those whose host matches restriction per
// urlnorm.MatchesDomainRestriction (spec §4.2 step 10).
func (le *LinkExtractor) ExtractLinksWithDomainRestriction(baseURL, htmlContent, restriction string) ([]string, error) {
	links, err := le.ExtractLinks(baseURL, htmlContent)
	if err != nil {
		return nil, err
	}
	if restriction == "" || len(links) == 0 {
		return links, nil
	}

	var filtered []string
	for _, link := range links {
		host, err := urlnorm.ExtractDomain(link)
		if err != nil {
			continue
		}
		if urlnorm.MatchesDomainRestriction(host, restriction) {
			filtered = append(filtered, link)
		}
	}
	return filtered, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExtractText returns the page's visible text — all element text nodes
// joined and whitespace-collapsed — dropping <script> and <style>
// contents (spec §4.2 step 7: "processed text content").
func (le *LinkExtractor) ExtractText(htmlContent string) (string, error) {
	if htmlContent = strings.TrimSpace(htmlContent); htmlContent == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML content: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	raw := doc.Text()
	collapsed := whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
	return collapsed, nil
}

// ExtractLinksWithStats extracts links and returns statistics about the
// extraction pass, useful for debugging crawl coverage.
func (le *LinkExtractor) ExtractLinksWithStats(baseURL, htmlContent string) ([]string, *ExtractionStats, error) {
	stats := &ExtractionStats{}

	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		return nil, stats, fmt.Errorf("base URL cannot be empty")
	}

	if htmlContent = strings.TrimSpace(htmlContent); htmlContent == "" {
		return []string{}, stats, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse HTML content: %w", err)
	}

	var links []string

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}

		stats.TotalFound++
		href = strings.TrimSpace(href)
		if href == "" {
			stats.EmptyHrefs++
			return
		}

		if urlnorm.ShouldSkipURL(href) {
			stats.FilteredOut++
			return
		}

		var absoluteURL string
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			absoluteURL = href
		} else {
			stats.RelativeURLs++
			resolved, err := urlnorm.ResolveURL(baseURL, href)
			if err != nil {
				stats.ResolutionErrors++
				return
			}
			absoluteURL = resolved
		}

		if !urlnorm.IsValidURL(absoluteURL) {
			stats.InvalidURLs++
			return
		}

		normalized, err := urlnorm.Normalize(absoluteURL)
		if err != nil {
			stats.NormalizationErrors++
			return
		}

		links = append(links, normalized)
		stats.Valid++
	})

	return links, stats, nil
}

// ExtractionStats holds statistics about one link-extraction pass.
type ExtractionStats struct {
	TotalFound          int
	Valid               int
	EmptyHrefs          int
	FilteredOut         int
	RelativeURLs        int
	ResolutionErrors    int
	InvalidURLs         int
	NormalizationErrors int
}

// String returns a human-readable representation of the stats.
func (s *ExtractionStats) String() string {
	return fmt.Sprintf("ExtractionStats{Total: %d, Valid: %d, Empty: %d, Filtered: %d, Relative: %d, ResolutionErr: %d, Invalid: %d, NormalizationErr: %d}",
		s.TotalFound, s.Valid, s.EmptyHrefs, s.FilteredOut, s.RelativeURLs, s.ResolutionErrors, s.InvalidURLs, s.NormalizationErrors)
}
