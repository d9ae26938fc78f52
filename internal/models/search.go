package models

// Source confidence hints assigned from the domain reputation table.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// SearchSource is one ranked result from the search provider, optionally
// enriched with extracted page content.
type SearchSource struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	Snippet    string `json:"snippet"`
	Confidence string `json:"confidence"`
	Content    string `json:"content,omitempty"`
	IsSummary  bool   `json:"is_summary,omitempty"`
}

// SearchResponse is the provider's answer plus its scored sources.
type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Sources []SearchSource `json:"sources"`
}
