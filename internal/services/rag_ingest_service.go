package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"conversa/internal/models"
	"conversa/internal/utils"
)

// RAGStore is the persistence contract for documents and their embedded
// chunks. Documents move pending → ready; retrieval only sees ready ones.
type RAGStore interface {
	InsertDocument(ctx context.Context, doc models.Document) error
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	MarkDocumentReady(ctx context.Context, documentID string) error
	ReadyDocuments(ctx context.Context, conversationID string) ([]models.Document, error)
	HasReadyDocuments(ctx context.Context, conversationID string) (bool, error)
	ChunksByConversation(ctx context.Context, conversationID string) ([]models.Chunk, error)
	DocumentName(ctx context.Context, documentID string) (string, error)
	DeleteDocument(ctx context.Context, documentID string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
	StalePendingDocuments(ctx context.Context, olderThan time.Time) ([]models.Document, error)
}

// RAGIngestService chunks uploaded documents, embeds every chunk, and
// persists them scoped to a conversation.
type RAGIngestService struct {
	store        RAGStore
	embedder     Embedder
	chunkSize    int
	chunkOverlap int
}

// NewRAGIngestService creates a new ingest service
func NewRAGIngestService(store RAGStore, embedder Embedder, chunkSize, chunkOverlap int) *RAGIngestService {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &RAGIngestService{
		store:        store,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestPDF extracts text from a PDF upload and ingests it.
func (s *RAGIngestService) IngestPDF(ctx context.Context, data []byte, filename, userID, conversationID string) (*models.Document, error) {
	if err := utils.ValidatePDF(data); err != nil {
		return nil, err
	}
	text, err := utils.ExtractPDFText(data)
	if err != nil {
		return nil, err
	}
	return s.IngestText(ctx, text, filename, userID, conversationID)
}

// IngestText chunks and embeds raw text. The document record is written as
// pending first and only marked ready after every chunk has been persisted,
// so a failed ingestion never surfaces a half-embedded document to queries.
func (s *RAGIngestService) IngestText(ctx context.Context, text, filename, userID, conversationID string) (*models.Document, error) {
	started := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("document %q contains no extractable text", filename)
	}
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	pieces := chunkText(text, s.chunkSize, s.chunkOverlap)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document %q produced no chunks", filename)
	}

	doc := models.Document{
		DocumentID:     uuid.New().String(),
		Filename:       filename,
		UserID:         userID,
		ConversationID: conversationID,
		ChunkCount:     len(pieces),
		TextLength:     len(text),
		Status:         models.DocumentStatusPending,
		EmbeddingModel: s.embedder.Model(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	chunks, err := s.embedChunks(ctx, doc, pieces)
	if err != nil {
		// Roll back the pending record so nothing half-ingested lingers.
		if cleanupErr := s.store.DeleteDocument(context.WithoutCancel(ctx), doc.DocumentID); cleanupErr != nil {
			log.Printf("⚠️ [RAG-INGEST] Failed to clean up document %s after error: %v", doc.DocumentID, cleanupErr)
		}
		return nil, err
	}

	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		if cleanupErr := s.store.DeleteDocument(context.WithoutCancel(ctx), doc.DocumentID); cleanupErr != nil {
			log.Printf("⚠️ [RAG-INGEST] Failed to clean up document %s after error: %v", doc.DocumentID, cleanupErr)
		}
		return nil, err
	}

	if err := s.store.MarkDocumentReady(ctx, doc.DocumentID); err != nil {
		return nil, err
	}
	doc.Status = models.DocumentStatusReady

	GetMetrics().RecordIngest(time.Since(started).Seconds())
	log.Printf("📄 [RAG-INGEST] Ingested %q: %d chunks, %d chars (conversation %s)",
		filename, len(pieces), len(text), conversationID)
	return &doc, nil
}

// embedChunks computes one embedding per chunk and enforces a constant
// dimension across the document.
func (s *RAGIngestService) embedChunks(ctx context.Context, doc models.Document, pieces []chunkPiece) ([]models.Chunk, error) {
	chunks := make([]models.Chunk, 0, len(pieces))
	dimension := 0

	for _, piece := range pieces {
		vector, err := s.embedder.Embed(ctx, piece.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %q: %w", piece.Index, doc.Filename, err)
		}
		if dimension == 0 {
			dimension = len(vector)
		} else if len(vector) != dimension {
			return nil, fmt.Errorf("embedding dimension changed mid-document (%d vs %d)", len(vector), dimension)
		}

		chunks = append(chunks, models.Chunk{
			ChunkID:        fmt.Sprintf("%s_chunk_%d", doc.DocumentID, piece.Index),
			DocumentID:     doc.DocumentID,
			ConversationID: doc.ConversationID,
			UserID:         doc.UserID,
			Index:          piece.Index,
			Text:           piece.Text,
			Embedding:      vector,
			EmbeddingModel: s.embedder.Model(),
			CreatedAt:      time.Now().UTC(),
		})
	}
	return chunks, nil
}

// DeleteDocument removes a document and its chunks. Idempotent.
func (s *RAGIngestService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.store.DeleteDocument(ctx, documentID)
}

// ListDocuments returns the ready documents owned by a conversation.
func (s *RAGIngestService) ListDocuments(ctx context.Context, conversationID string) ([]models.Document, error) {
	return s.store.ReadyDocuments(ctx, conversationID)
}

type chunkPiece struct {
	Text  string
	Index int
}

// chunkText splits text with a sliding window of roughly size chars and
// overlap chars of lookback, snapping each boundary back to the nearest
// sentence terminator or newline as long as that keeps at least 70% of the
// window. Chunks never split mid-sentence unless a sentence itself exceeds
// the window.
func chunkText(text string, size, overlap int) []chunkPiece {
	if text == "" {
		return nil
	}

	var pieces []chunkPiece
	start := 0
	index := 0

	for start < len(text) {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]

		if end < len(text) {
			lastPeriod := strings.LastIndex(window, ". ")
			lastNewline := strings.LastIndex(window, "\n")
			breakPoint := lastPeriod
			if lastNewline > breakPoint {
				breakPoint = lastNewline
			}
			if breakPoint > size*7/10 {
				window = window[:breakPoint+1]
				end = start + breakPoint + 1
			}
		}

		if trimmed := strings.TrimSpace(window); trimmed != "" {
			pieces = append(pieces, chunkPiece{Text: trimmed, Index: index})
			index++
		}

		if end >= len(text) {
			break
		}
		start = end - overlap
		if start >= len(text)-overlap {
			break
		}
	}

	return pieces
}
