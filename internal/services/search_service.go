package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"conversa/internal/models"
)

// SourceReader fetches a URL and extracts its main textual content.
type SourceReader interface {
	Read(ctx context.Context, url string) (string, error)
}

// enrichTopSources is how many of the best-scored sources get their full
// page content fetched to supplement the search snippets. Up to
// enrichMaxAttempts fetches are tried to fill that budget.
const (
	enrichTopSources  = 2
	enrichMaxAttempts = 3
)

// SearchService runs web searches, caches results, and enriches the top
// sources with extracted page content.
type SearchService struct {
	provider SearchProvider
	reader   SourceReader
	cache    SearchCache
}

// NewSearchService creates a new search service
func NewSearchService(provider SearchProvider, reader SourceReader, cache SearchCache) *SearchService {
	if cache == nil {
		cache = NewMemorySearchCache()
	}
	return &SearchService{provider: provider, reader: reader, cache: cache}
}

// Search executes the query, falling back to a simplified form when the
// original returns nothing. Cached responses skip the provider entirely.
func (s *SearchService) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	if cached, found := s.cache.Get(ctx, query); found {
		log.Printf("✅ [SEARCH] Cache hit for: %q", query)
		return cached, nil
	}

	resp, err := s.provider.Search(ctx, query)
	if err != nil || len(resp.Sources) == 0 {
		simplified := simplifyQuery(query)
		if simplified != query && simplified != "" {
			log.Printf("🔄 [SEARCH] Retrying with simplified query: %q -> %q", query, simplified)
			resp, err = s.provider.Search(ctx, simplified)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Sources) == 0 {
		return nil, fmt.Errorf("no results found for %q", query)
	}

	s.enrichSources(ctx, resp)
	s.cache.Set(ctx, query, resp)
	return resp, nil
}

// enrichSources fetches full page content for the top scored non-summary
// sources. Fetch failures leave the snippet in place and don't consume the
// enrichment budget, so a later source can still fill the slot.
func (s *SearchService) enrichSources(ctx context.Context, resp *models.SearchResponse) {
	if s.reader == nil {
		return
	}
	enriched, attempts := 0, 0
	for _, rank := range []string{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow} {
		for i := range resp.Sources {
			if enriched >= enrichTopSources || attempts >= enrichMaxAttempts {
				return
			}
			src := &resp.Sources[i]
			if src.IsSummary || src.URL == "" || src.Confidence != rank || src.Content != "" {
				continue
			}
			attempts++
			content, err := s.reader.Read(ctx, src.URL)
			if err != nil {
				log.Printf("⚠️ [SEARCH] Could not enrich %s: %v", src.URL, err)
				continue
			}
			src.Content = content
			enriched++
			log.Printf("📰 [SEARCH] Enriched %s (%d chars)", src.Domain, len(content))
		}
	}
}

// BuildContext formats a search response into a prompt block: the summary
// answer first, then the sources ranked with their confidence hints.
func (s *SearchService) BuildContext(resp *models.SearchResponse) string {
	if resp == nil || len(resp.Sources) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for %q:\n\n", resp.Query)
	if resp.Answer != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", resp.Answer)
	}
	n := 0
	for _, src := range resp.Sources {
		if src.IsSummary {
			continue
		}
		n++
		fmt.Fprintf(&b, "[%d] %s (%s, confidence: %s)\n    URL: %s\n", n, src.Title, src.Domain, src.Confidence, src.URL)
		if src.Content != "" {
			fmt.Fprintf(&b, "    %s\n\n", src.Content)
		} else {
			fmt.Fprintf(&b, "    %s\n\n", src.Snippet)
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	yearPattern    = regexp.MustCompile(`\b20[0-9]{2}\b`)
	versionPattern = regexp.MustCompile(`\bv?\d+\.\d+(\.\d+)?\b`)
)

// simplifyQuery strips years, version numbers, and freshness words so a
// retry casts a wider net.
func simplifyQuery(query string) string {
	query = yearPattern.ReplaceAllString(query, "")
	query = versionPattern.ReplaceAllString(query, "")
	query = strings.ReplaceAll(query, `"`, "")

	fields := strings.Fields(query)
	kept := fields[:0]
	for _, word := range fields {
		switch strings.ToLower(word) {
		case "latest", "recent", "new", "updates", "update", "news", "release", "released", "version":
			continue
		}
		kept = append(kept, word)
	}

	simplified := strings.Join(kept, " ")
	if len(simplified) < 3 {
		return strings.TrimSpace(query)
	}
	return simplified
}
