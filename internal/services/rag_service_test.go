package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"conversa/internal/models"
)

func TestChunkText(t *testing.T) {
	t.Run("Short text yields one chunk", func(t *testing.T) {
		pieces := chunkText("Just a short note.", 1000, 200)
		if len(pieces) != 1 {
			t.Fatalf("Expected 1 chunk, got %d", len(pieces))
		}
		if pieces[0].Text != "Just a short note." {
			t.Errorf("Unexpected chunk text: %q", pieces[0].Text)
		}
	})

	t.Run("Empty text yields no chunks", func(t *testing.T) {
		if pieces := chunkText("", 1000, 200); pieces != nil {
			t.Errorf("Expected nil, got %d chunks", len(pieces))
		}
	})

	t.Run("Boundaries snap to sentence ends", func(t *testing.T) {
		sentence := "The quick brown fox jumps over the lazy dog and keeps running. "
		text := strings.Repeat(sentence, 60) // ~3840 chars

		pieces := chunkText(text, 1000, 200)
		if len(pieces) < 3 {
			t.Fatalf("Expected multiple chunks, got %d", len(pieces))
		}
		for i, p := range pieces[:len(pieces)-1] {
			if !strings.HasSuffix(p.Text, ".") {
				t.Errorf("Chunk %d does not end at a sentence boundary: %q", i, p.Text[len(p.Text)-40:])
			}
			if len(p.Text) > 1000 {
				t.Errorf("Chunk %d exceeds window size: %d chars", i, len(p.Text))
			}
		}
	})

	t.Run("Consecutive chunks overlap", func(t *testing.T) {
		sentence := "Gophers dig tunnels through the prairie every single day. "
		text := strings.Repeat(sentence, 60)

		pieces := chunkText(text, 1000, 200)
		if len(pieces) < 2 {
			t.Fatalf("Expected at least 2 chunks, got %d", len(pieces))
		}
		// The tail of chunk 0 falls inside the overlap window, so it must
		// reappear in chunk 1.
		tail := strings.TrimSpace(pieces[0].Text[len(pieces[0].Text)-30:])
		if !strings.Contains(pieces[1].Text, tail) {
			t.Errorf("Expected overlap between chunks:\n tail=%q\n head=%q", tail, pieces[1].Text)
		}
	})

	t.Run("Indexes are sequential", func(t *testing.T) {
		text := strings.Repeat("Sentences accumulate here one after another. ", 80)
		pieces := chunkText(text, 1000, 200)
		for i, p := range pieces {
			if p.Index != i {
				t.Errorf("Expected index %d, got %d", i, p.Index)
			}
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"Identical vectors", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"Orthogonal vectors", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"Opposite vectors", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"Dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"Zero vector", []float64{0, 0}, []float64{1, 2}, 0.0},
		{"Empty vectors", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIngestAndRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()
	embedder := &fakeEmbedder{}
	ingest := NewRAGIngestService(store, embedder, 200, 40)
	retrieve := NewRAGRetrievalService(store, embedder, 5, 0.3)

	text := strings.Join([]string{
		"The mitochondria is the powerhouse of the cell and produces energy.",
		"Photosynthesis converts sunlight into chemical energy in plants.",
		"Gravity is the force that attracts objects with mass toward each other.",
		"The water cycle moves moisture between oceans, air, and land.",
	}, " ")

	doc, err := ingest.IngestText(ctx, text, "science.txt", "user-1", "conv-1")
	if err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}
	if doc.Status != models.DocumentStatusReady {
		t.Errorf("Expected ready document, got %q", doc.Status)
	}
	if doc.ChunkCount == 0 {
		t.Fatalf("Expected chunks, got 0")
	}

	// Query verbatim from the text must rank its chunk first above threshold.
	chunks, err := retrieve.Retrieve(ctx, "Photosynthesis converts sunlight into chemical energy in plants.", "conv-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("Expected retrieval hits, got none")
	}
	if !strings.Contains(chunks[0].Text, "Photosynthesis") {
		t.Errorf("Expected photosynthesis chunk ranked first, got %q (score %.2f)", chunks[0].Text, chunks[0].Score)
	}
	if chunks[0].Score <= 0.3 {
		t.Errorf("Expected top score above threshold, got %.2f", chunks[0].Score)
	}
	if chunks[0].DocumentName != "science.txt" {
		t.Errorf("Expected document name carried through, got %q", chunks[0].DocumentName)
	}

	// Scores must be sorted descending.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Score > chunks[i-1].Score {
			t.Errorf("Chunks not sorted: %f before %f", chunks[i-1].Score, chunks[i].Score)
		}
	}
}

func TestRetrieveThresholdEdge(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()
	embedder := &fakeEmbedder{}
	ingest := NewRAGIngestService(store, embedder, 200, 40)
	// Impossible threshold: nothing can score above it.
	retrieve := NewRAGRetrievalService(store, embedder, 5, 1.1)

	if _, err := ingest.IngestText(ctx, "A single small document about nothing much at all.", "note.txt", "user-1", "conv-1"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}

	chunks, err := retrieve.Retrieve(ctx, "completely unrelated query", "conv-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks above threshold, got %d", len(chunks))
	}
	if ctxBlock := retrieve.BuildContext(chunks); ctxBlock != "" {
		t.Errorf("Expected empty context block, got %q", ctxBlock)
	}
}

// TestRetrieveThresholdIsStrict pins the comparison: a chunk scoring exactly
// at the threshold is excluded. Disjoint vocabularies embed into orthogonal
// vectors under the bag-of-words fake, so the cosine score is exactly 0.0.
func TestRetrieveThresholdIsStrict(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()
	embedder := &fakeEmbedder{}
	ingest := NewRAGIngestService(store, embedder, 200, 40)
	retrieve := NewRAGRetrievalService(store, embedder, 5, 0.0)

	if _, err := ingest.IngestText(ctx, "alpha beta gamma delta", "greek.txt", "user-1", "conv-1"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}

	chunks, err := retrieve.Retrieve(ctx, "one two three four", "conv-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected zero-scoring chunks excluded at threshold, got %d hits", len(chunks))
	}
}

// TestRetrieveSkipsModelMismatch ensures chunks embedded with a different
// model never contribute to scoring.
func TestRetrieveSkipsModelMismatch(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()

	oldEmbedder := &fakeEmbedder{model: "old-model"}
	ingest := NewRAGIngestService(store, oldEmbedder, 200, 40)
	if _, err := ingest.IngestText(ctx, "Chunks embedded under the old model live here.", "old.txt", "user-1", "conv-1"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}

	newEmbedder := &fakeEmbedder{model: "new-model"}
	retrieve := NewRAGRetrievalService(store, newEmbedder, 5, 0.0)

	chunks, err := retrieve.Retrieve(ctx, "Chunks embedded under the old model live here.", "conv-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected mismatched-model chunks skipped, got %d hits", len(chunks))
	}
}

// TestIngestFailureLeavesNothingVisible checks the pending/ready two-phase:
// an embedding failure must not leave a document visible to retrieval.
func TestIngestFailureLeavesNothingVisible(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()
	ingest := NewRAGIngestService(store, &fakeEmbedder{failing: true}, 200, 40)

	if _, err := ingest.IngestText(ctx, "This ingestion is going to fail at the embedding step.", "doomed.txt", "user-1", "conv-1"); err == nil {
		t.Fatalf("Expected ingestion error")
	}

	has, err := store.HasReadyDocuments(ctx, "conv-1")
	if err != nil {
		t.Fatalf("HasReadyDocuments failed: %v", err)
	}
	if has {
		t.Errorf("Expected no visible documents after failed ingestion")
	}
	if len(store.documents) != 0 {
		t.Errorf("Expected pending document rolled back, found %d", len(store.documents))
	}
}

func TestDeleteByConversationCascades(t *testing.T) {
	ctx := context.Background()
	store := newFakeRAGStore()
	embedder := &fakeEmbedder{}
	ingest := NewRAGIngestService(store, embedder, 200, 40)
	conversations := NewConversationService(newFakeConversationStore(), store)

	if _, err := ingest.IngestText(ctx, "Document one lives in the doomed conversation.", "one.txt", "user-1", "conv-del"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}
	if _, err := ingest.IngestText(ctx, "Document two also lives in the doomed conversation.", "two.txt", "user-1", "conv-del"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}
	if _, err := ingest.IngestText(ctx, "This document belongs to a different conversation.", "other.txt", "user-1", "conv-keep"); err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}

	if err := conversations.Delete(ctx, "conv-del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	has, _ := store.HasReadyDocuments(ctx, "conv-del")
	if has {
		t.Errorf("Expected cascade to remove documents")
	}
	chunks, _ := store.ChunksByConversation(ctx, "conv-keep")
	if len(chunks) == 0 {
		t.Errorf("Expected other conversation untouched")
	}

	// Deleting twice is a no-op, not an error.
	if err := conversations.Delete(ctx, "conv-del"); err != nil {
		t.Errorf("Second delete should be idempotent, got %v", err)
	}
}
