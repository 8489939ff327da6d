// Package sitecheck crawls a handful of same-site pages and reports where
// the widget script is present. It backs the admin "deep scan" action; the
// authoritative homepage check lives in the status checker.
package sitecheck

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"spotfix-widget-service/internal/remote"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"
)

// ScanConfig holds configuration for one scan.
type ScanConfig struct {
	SiteURL   string
	ScriptURL string
	BundleURL string
	MaxPages  int
	Timeout   time.Duration
}

// PageResult reports one crawled page.
type PageResult struct {
	URL   string `json:"url"`
	Found bool   `json:"found"`
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Pages           []PageResult `json:"pages"`
	PagesCrawled    int          `json:"pages_crawled"`
	PagesWithWidget int          `json:"pages_with_widget"`
}

// ScanSite crawls up to MaxPages pages of the site, following same-domain
// links one level deep, and checks each page for the widget script. The
// crawl mirrors the homepage self-probe posture: browser headers, relaxed
// TLS, no external domains.
func ScanSite(cfg ScanConfig) (*ScanResult, error) {
	parsedURL, err := url.Parse(cfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid site URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
		cfg.SiteURL = parsedURL.String()
	}

	hostname := parsedURL.Hostname()
	allowedDomains := []string{hostname}
	if clean := strings.TrimPrefix(strings.ToLower(hostname), "www."); clean != hostname {
		allowedDomains = append(allowedDomains, clean)
	} else {
		allowedDomains = append(allowedDomains, "www."+hostname)
	}
	if parsedURL.Port() != "" {
		allowedDomains = append(allowedDomains, parsedURL.Host)
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	// Fresh collector per scan; scans share no state.
	c := colly.NewCollector(
		colly.Async(false),
		colly.MaxDepth(2),
		colly.AllowedDomains(allowedDomains...),
	)

	c.WithTransport(&http.Transport{
		DisableCompression: false,
		TLSClientConfig:    &tls.Config{InsecureSkipVerify: true},
	})

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	} else {
		c.SetRequestTimeout(30 * time.Second)
	}

	c.UserAgent = remote.DesktopUserAgent

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		mu      sync.Mutex
		pages   []PageResult
		visited = map[string]bool{}
	)

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		pageURL := r.Request.URL.String()
		body := string(r.Body)

		mu.Lock()
		defer mu.Unlock()
		if visited[pageURL] || len(pages) >= maxPages {
			return
		}
		visited[pageURL] = true
		pages = append(pages, PageResult{
			URL:   pageURL,
			Found: pageHasScript(body, cfg.ScriptURL, cfg.BundleURL),
		})
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		full := len(pages) >= maxPages
		mu.Unlock()
		if full {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		e.Request.Visit(link)
	})

	if err := c.Visit(cfg.SiteURL); err != nil {
		return nil, err
	}
	c.Wait()

	result := &ScanResult{Pages: pages, PagesCrawled: len(pages)}
	for _, p := range pages {
		if p.Found {
			result.PagesWithWidget++
		}
	}
	return result, nil
}

// pageHasScript mirrors the homepage check: verbatim URL containment or a
// script tag loading the bundle.
func pageHasScript(body, scriptURL, bundleURL string) bool {
	if scriptURL != "" && strings.Contains(body, scriptURL) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}

	found := false
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if strings.HasPrefix(src, bundleURL) {
			found = true
			return false
		}
		return true
	})
	return found
}
