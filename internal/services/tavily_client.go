package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"conversa/internal/models"
)

// SearchProvider executes one web search and returns scored sources.
type SearchProvider interface {
	Search(ctx context.Context, query string) (*models.SearchResponse, error)
}

// Domain reputation table for confidence scoring. Matched as substrings
// of the lowercased URL.
var highConfidenceDomains = []string{
	".gov", ".edu", "nature.com", "science.org", "arxiv.org",
	"pubmed", "ieee.org", "acm.org", "springer.com",
	"bbc.com", "reuters.com", "apnews.com", "ufc.com",
	"espn.com", "nytimes.com", "washingtonpost.com",
}

var lowConfidenceDomains = []string{
	"reddit.com", "quora.com", "medium.com", "blog",
	"opinion", "forum",
}

const (
	tavilyMaxRetries    = 2
	tavilyRetryBackoff  = 500 * time.Millisecond
	tavilyMaxResults    = 5
	tavilySnippetLength = 800
)

// TavilyClient calls the Tavily search API. Transient failures are retried
// up to two extra times with backoff; rate limiting is not retried.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewTavilyClient creates a new Tavily search client
func NewTavilyClient(apiKey, baseURL string, timeout time.Duration) *TavilyClient {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilyClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

// Search runs the query against Tavily and scores each source against the
// domain reputation table.
func (c *TavilyClient) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily API key not configured")
	}

	var lastErr error
	for attempt := 0; attempt <= tavilyMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * tavilyRetryBackoff):
			}
			log.Printf("🔄 [SEARCH] Retry %d/%d for query: %q", attempt, tavilyMaxRetries, query)
		}

		resp, err := c.doSearch(ctx, query)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if strings.Contains(err.Error(), "rate limit") {
			return nil, err
		}
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", tavilyMaxRetries+1, lastErr)
}

func (c *TavilyClient) doSearch(ctx context.Context, query string) (*models.SearchResponse, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		MaxResults:    tavilyMaxResults,
		SearchDepth:   "advanced",
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("search rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	out := &models.SearchResponse{Query: query, Answer: parsed.Answer}
	if parsed.Answer != "" {
		out.Sources = append(out.Sources, models.SearchSource{
			Title:      "Search Summary",
			Domain:     "tavily",
			Snippet:    parsed.Answer,
			Confidence: models.ConfidenceHigh,
			IsSummary:  true,
		})
	}
	for _, item := range parsed.Results {
		snippet := item.Content
		if len(snippet) > tavilySnippetLength {
			snippet = snippet[:tavilySnippetLength]
		}
		out.Sources = append(out.Sources, models.SearchSource{
			Title:      item.Title,
			URL:        item.URL,
			Domain:     extractDomain(item.URL),
			Snippet:    snippet,
			Confidence: assessConfidence(item.URL),
		})
	}
	return out, nil
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func assessConfidence(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, domain := range highConfidenceDomains {
		if strings.Contains(lower, domain) {
			return models.ConfidenceHigh
		}
	}
	for _, domain := range lowConfidenceDomains {
		if strings.Contains(lower, domain) {
			return models.ConfidenceLow
		}
	}
	return models.ConfidenceMedium
}
