package services

import (
	"context"
	"log"
	"regexp"
	"strings"

	"conversa/internal/models"
)

// searchIncludePatterns match queries that likely need fresh information
// from the web. Compiled once at init; matching is on the lowercased query.
var searchIncludePatterns = compilePatterns([]string{
	// Time-sensitive queries
	`\b(today|yesterday|this week|this month|this year|202[0-9]|current|latest|recent|now|right now)\b`,
	`\b(what is|what's|what are) .* (price|stock|weather|news|score)\b`,

	// Real-time information
	`\b(weather|forecast|temperature)\b.*\b(in|at|for)\b`,
	`\b(news|headlines|latest)\b`,
	`\b(stock|share|market|trading)\b.*\b(price|value)\b`,
	`\b(score|result|match|game)\b.*\b(of|between|vs)\b`,

	// Events and schedules
	`\b(when is|when's|when will|when does|what date|exact date)\b`,
	`\b(next|upcoming|scheduled|event|fight|match|game)\b`,
	`\b(ufc|nfl|nba|mlb|premier league|champions league)\b`,

	// Current events and facts
	`\b(who is|who's) the (current|present)\b`,
	`\b(how much|how many|what is) .* (cost|worth|value)\b`,
	`\b(release date|coming out)\b`,

	// Search-like phrasing
	`\b(search|look up|find|google|check)\b`,
	`\b(tell me about|information about|info on)\b`,
	`\b(what happened|what's happening)\b`,
})

// searchExcludePatterns match queries the model can answer from its own
// knowledge or from supplied context. An exclude match always wins over
// any include match.
var searchExcludePatterns = compilePatterns([]string{
	`\b(explain|teach me|how does .* work|what is the concept)\b`,
	`\b(write|create|generate|make|code|implement)\b`,
	`\b(translate|summarize|rewrite)\b`,
	`\b(my|our|we|i)\b.*(document|pdf|file|upload)`,
})

func compilePatterns(exprs []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return patterns
}

// ToolRouter decides, per turn, whether to run web search and whether to
// run document retrieval. The two decisions are independent.
type ToolRouter struct {
	retriever *RAGRetrievalService
}

// NewToolRouter creates a new tool router
func NewToolRouter(retriever *RAGRetrievalService) *ToolRouter {
	return &ToolRouter{retriever: retriever}
}

// ShouldSearch applies the tool mode, then the keyword heuristics. Mode
// "search" forces true, "none" forces false, "auto" consults the patterns
// with exclusions taking precedence.
func (r *ToolRouter) ShouldSearch(query, toolMode string) bool {
	switch toolMode {
	case models.ToolModeSearch:
		return true
	case models.ToolModeNone:
		return false
	}

	lower := strings.ToLower(query)

	for _, pattern := range searchExcludePatterns {
		if pattern.MatchString(lower) {
			return false
		}
	}
	for _, pattern := range searchIncludePatterns {
		if pattern.MatchString(lower) {
			log.Printf("🔎 [ROUTER] Search triggered by pattern %q", pattern.String())
			return true
		}
	}
	return false
}

// ShouldRetrieve reports whether document retrieval applies: the caller
// must not have opted out, and the conversation must have ready documents.
// Store errors degrade to false so a flaky lookup never blocks the turn.
func (r *ToolRouter) ShouldRetrieve(ctx context.Context, conversationID string, useRAG bool) bool {
	if !useRAG || conversationID == "" {
		return false
	}
	has, err := r.retriever.HasDocuments(ctx, conversationID)
	if err != nil {
		log.Printf("⚠️ [ROUTER] Document check failed, skipping retrieval: %v", err)
		return false
	}
	return has
}
