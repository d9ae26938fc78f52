package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"conversa/internal/models"
)

// RAGRetrievalService embeds a query and ranks a conversation's stored
// chunks by cosine similarity.
type RAGRetrievalService struct {
	store    RAGStore
	embedder Embedder
	topK     int
	minScore float64
}

// NewRAGRetrievalService creates a new retrieval service
func NewRAGRetrievalService(store RAGStore, embedder Embedder, topK int, minScore float64) *RAGRetrievalService {
	if topK <= 0 {
		topK = 5
	}
	return &RAGRetrievalService{
		store:    store,
		embedder: embedder,
		topK:     topK,
		minScore: minScore,
	}
}

// HasDocuments reports whether the conversation has any ready documents.
func (s *RAGRetrievalService) HasDocuments(ctx context.Context, conversationID string) (bool, error) {
	return s.store.HasReadyDocuments(ctx, conversationID)
}

// Retrieve returns up to topK chunks scoring strictly above the threshold,
// highest first. Chunks embedded with a different model are skipped: cosine
// scores across embedding spaces are meaningless.
func (s *RAGRetrievalService) Retrieve(ctx context.Context, query, conversationID string) ([]models.ScoredChunk, error) {
	chunks, err := s.store.ChunksByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	model := s.embedder.Model()
	docNames := make(map[string]string)
	scored := make([]models.ScoredChunk, 0, len(chunks))
	skipped := 0

	for _, chunk := range chunks {
		if chunk.EmbeddingModel != model {
			skipped++
			continue
		}
		score := cosineSimilarity(queryVec, chunk.Embedding)
		if score <= s.minScore {
			continue
		}
		name, ok := docNames[chunk.DocumentID]
		if !ok {
			name, err = s.store.DocumentName(ctx, chunk.DocumentID)
			if err != nil {
				name = chunk.DocumentID
			}
			docNames[chunk.DocumentID] = name
		}
		scored = append(scored, models.ScoredChunk{
			Text:         chunk.Text,
			DocumentID:   chunk.DocumentID,
			DocumentName: name,
			Index:        chunk.Index,
			Score:        score,
		})
	}

	if skipped > 0 {
		log.Printf("⚠️ [RAG-RETRIEVAL] Skipped %d chunks embedded with a different model (want %s)", skipped, model)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}
	return scored, nil
}

// BuildContext formats retrieved chunks into a prompt block. Returns ""
// when nothing scored above the threshold so the turn proceeds ungrounded.
func (s *RAGRetrievalService) BuildContext(chunks []models.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant excerpts from the user's documents:\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] From %q (relevance %.2f):\n%s\n\n", i+1, chunk.DocumentName, chunk.Score, chunk.Text)
	}
	b.WriteString("Use these excerpts to answer the user's question. If they don't contain the answer, say so instead of guessing.")
	return b.String()
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either vector is zero-length or the dimensions differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
