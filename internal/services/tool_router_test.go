package services

import (
	"context"
	"testing"

	"conversa/internal/models"
)

func TestShouldSearch(t *testing.T) {
	router := NewToolRouter(nil)

	tests := []struct {
		name  string
		query string
		mode  string
		want  bool
	}{
		{
			name:  "Mode search forces on",
			query: "explain recursion to me",
			mode:  models.ToolModeSearch,
			want:  true,
		},
		{
			name:  "Mode none forces off",
			query: "what is the weather in Paris today",
			mode:  models.ToolModeNone,
			want:  false,
		},
		{
			name:  "Weather query triggers search",
			query: "what's the weather in Tokyo",
			mode:  models.ToolModeAuto,
			want:  true,
		},
		{
			name:  "News query triggers search",
			query: "latest news about the election",
			mode:  models.ToolModeAuto,
			want:  true,
		},
		{
			name:  "League names trigger search",
			query: "when is the next UFC fight",
			mode:  models.ToolModeAuto,
			want:  true,
		},
		{
			name:  "Explicit search verb triggers search",
			query: "look up the population of Iceland",
			mode:  models.ToolModeAuto,
			want:  true,
		},
		{
			name:  "Explain queries stay local",
			query: "explain how neural networks work",
			mode:  models.ToolModeAuto,
			want:  false,
		},
		{
			name:  "Code requests stay local",
			query: "write a function that reverses a string",
			mode:  models.ToolModeAuto,
			want:  false,
		},
		{
			name:  "Document references stay local",
			query: "summarize my pdf about the latest quarterly results",
			mode:  models.ToolModeAuto,
			want:  false, // exclude wins even though "latest" matches include
		},
		{
			name:  "Exclude beats include",
			query: "explain the latest developments in quantum computing",
			mode:  models.ToolModeAuto,
			want:  false,
		},
		{
			name:  "Plain conversation stays local",
			query: "thanks, that was helpful",
			mode:  models.ToolModeAuto,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := router.ShouldSearch(tt.query, tt.mode)
			if got != tt.want {
				t.Errorf("ShouldSearch(%q, %q) = %v, want %v", tt.query, tt.mode, got, tt.want)
			}
		})
	}
}

func TestShouldRetrieve(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()
	embedder := &fakeEmbedder{}
	retriever := NewRAGRetrievalService(store, embedder, 5, 0.3)
	router := NewToolRouter(retriever)

	if router.ShouldRetrieve(ctx, "conv-1", true) {
		t.Errorf("Expected false with no documents")
	}
	if router.ShouldRetrieve(ctx, "", true) {
		t.Errorf("Expected false with empty conversation id")
	}

	ingest := NewRAGIngestService(store, embedder, 200, 40)
	if _, err := ingest.IngestText(ctx, "A document so retrieval has something to find.", "doc.txt", "user-1", "conv-1"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}

	if !router.ShouldRetrieve(ctx, "conv-1", true) {
		t.Errorf("Expected true with ready documents")
	}
	if router.ShouldRetrieve(ctx, "conv-1", false) {
		t.Errorf("Expected false when caller opts out")
	}
}
