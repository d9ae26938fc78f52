package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const (
	readerUserAgent   = "Conversa-Bot/1.0"
	readerMaxBodySize = 10 * 1024 * 1024
	readerMaxContent  = 10000
	readerGlobalRate  = 10.0
)

// WebSourceReader fetches search result pages and extracts their main
// content with trafilatura. It honors robots.txt and rate-limits outbound
// requests globally.
type WebSourceReader struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	robotsCache  *gocache.Cache
	contentCache *gocache.Cache
}

// NewWebSourceReader creates a new web source reader
func NewWebSourceReader(timeout time.Duration) *WebSourceReader {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &WebSourceReader{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		limiter:      rate.NewLimiter(rate.Limit(readerGlobalRate), int(readerGlobalRate*2)),
		robotsCache:  gocache.New(24*time.Hour, 1*time.Hour),
		contentCache: gocache.New(1*time.Hour, 10*time.Minute),
	}
}

// Read fetches a URL and returns its extracted main text, truncated to a
// prompt-friendly length.
func (r *WebSourceReader) Read(ctx context.Context, rawURL string) (string, error) {
	if err := validateSourceURL(rawURL); err != nil {
		return "", err
	}

	if cached, found := r.contentCache.Get(rawURL); found {
		return cached.(string), nil
	}

	allowed, err := r.robotsAllowed(ctx, rawURL)
	if err != nil {
		log.Printf("⚠️ [READER] robots.txt check failed for %s: %v", rawURL, err)
	} else if !allowed {
		return "", fmt.Errorf("access blocked by robots.txt: %s", rawURL)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", readerUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}
	if !isExtractableContentType(resp.Header.Get("Content-Type")) {
		return "", fmt.Errorf("unsupported content type: %s", resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, readerMaxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	parsedURL, _ := url.Parse(rawURL)
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: parsedURL})
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if result == nil || result.ContentText == "" {
		return "", fmt.Errorf("no content extracted from page")
	}

	content := result.ContentText
	if len(content) > readerMaxContent {
		content = content[:readerMaxContent] + "...[truncated]"
	}

	r.contentCache.Set(rawURL, content, gocache.DefaultExpiration)
	return content, nil
}

// robotsAllowed checks the domain's robots.txt, caching parsed files for a
// day. A missing or unparseable robots.txt allows the fetch.
func (r *WebSourceReader) robotsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}
	domain := parsedURL.Scheme + "://" + parsedURL.Host

	if cached, found := r.robotsCache.Get(domain); found {
		data := cached.(*robotstxt.RobotsData)
		return data.FindGroup(readerUserAgent).Test(parsedURL.Path), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, domain+"/robots.txt", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", readerUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return true, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return true, nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return true, nil
	}

	r.robotsCache.Set(domain, data, gocache.DefaultExpiration)
	return data.FindGroup(readerUserAgent).Test(parsedURL.Path), nil
}

// validateSourceURL rejects non-HTTP schemes and private address space so
// search results can't point the reader at internal services.
func validateSourceURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only HTTP/HTTPS URLs are supported, got: %s", parsedURL.Scheme)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if ip := net.ParseIP(hostname); ip != nil && (ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

func isExtractableContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, ct := range []string{"text/html", "text/plain", "application/xhtml+xml"} {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}
