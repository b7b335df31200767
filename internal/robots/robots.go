// Package robots enforces robots.txt politeness per host, caching parsed
// rules and falling back to permissive-allow when robots.txt cannot be
// fetched (spec §4.2 step 3, §7 "permissive on fetch failure").
package robots

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Checker evaluates robots.txt rules for a user agent, caching one parsed
// document per host.
type Checker struct {
	userAgent string
	logger    *slog.Logger
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewChecker creates a new robots.txt checker for userAgent.
func NewChecker(userAgent string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		userAgent: userAgent,
		logger:    logger,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether targetURL may be fetched under the cached
// robots.txt for its host. On any fetch or parse error, the host is
// cached as fully permissive, matching the original Python crawler's
// can_fetch() behavior.
func (c *Checker) IsAllowed(targetURL string) (bool, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return false, fmt.Errorf("invalid URL: missing scheme or host")
	}

	data := c.robotsFor(parsed.Scheme, parsed.Host)
	if data == nil {
		return true, nil
	}

	group := data.FindGroup(c.userAgent)
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return group.Test(path), nil
}

func (c *Checker) robotsFor(scheme, host string) *robotstxt.RobotsData {
	domain := scheme + "://" + host

	c.mu.Lock()
	if data, ok := c.cache[domain]; ok {
		c.mu.Unlock()
		return data
	}
	c.mu.Unlock()

	data := c.fetch(domain)

	c.mu.Lock()
	c.cache[domain] = data
	c.mu.Unlock()

	return data
}

func (c *Checker) fetch(domain string) *robotstxt.RobotsData {
	robotsURL := domain + "/robots.txt"

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		c.logger.Warn("failed to build robots.txt request, allowing by default", "domain", domain, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("failed to fetch robots.txt, allowing by default", "domain", domain, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.logger.Warn("failed to parse robots.txt, allowing by default", "domain", domain, "error", err)
		return nil
	}

	c.logger.Debug("parsed robots.txt", "domain", domain, "status_code", resp.StatusCode)
	return data
}

// ClearCache discards all cached robots.txt documents.
func (c *Checker) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*robotstxt.RobotsData)
}

// CacheSize returns the number of hosts with a cached robots.txt result.
func (c *Checker) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
