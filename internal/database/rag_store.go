package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conversa/internal/models"
)

// RAGStore persists document metadata and embedded chunks. Documents are
// written as pending first and flipped to ready only after every chunk has
// landed, so retrieval never observes a half-ingested document.
type RAGStore struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
}

// NewRAGStore creates a RAG store backed by MongoDB
func NewRAGStore(db *MongoDB) *RAGStore {
	return &RAGStore{
		documents: db.Collection(CollectionDocuments),
		chunks:    db.Collection(CollectionChunks),
	}
}

// InsertDocument writes the document metadata record.
func (s *RAGStore) InsertDocument(ctx context.Context, doc models.Document) error {
	_, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.DocumentID, err)
	}
	return nil
}

// InsertChunks writes all chunks for a document in one batch.
func (s *RAGStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		docs[i] = c
	}
	_, err := s.chunks.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// MarkDocumentReady flips a pending document to ready, making it visible to
// retrieval.
func (s *RAGStore) MarkDocumentReady(ctx context.Context, documentID string) error {
	_, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": documentID},
		bson.M{"$set": bson.M{"status": models.DocumentStatusReady}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark document %s ready: %w", documentID, err)
	}
	return nil
}

// ReadyDocuments returns the ready documents owned by a conversation,
// newest first.
func (s *RAGStore) ReadyDocuments(ctx context.Context, conversationID string) ([]models.Document, error) {
	filter := bson.M{"conversationId": conversationID, "status": models.DocumentStatusReady}
	cursor, err := s.documents.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// HasReadyDocuments reports whether a conversation owns at least one
// fully-ingested document.
func (s *RAGStore) HasReadyDocuments(ctx context.Context, conversationID string) (bool, error) {
	count, err := s.documents.CountDocuments(ctx, bson.M{
		"conversationId": conversationID,
		"status":         models.DocumentStatusReady,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count documents: %w", err)
	}
	return count > 0, nil
}

// ChunksByConversation loads every chunk belonging to ready documents of a
// conversation.
func (s *RAGStore) ChunksByConversation(ctx context.Context, conversationID string) ([]models.Chunk, error) {
	docs, err := s.ReadyDocuments(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocumentID
	}

	cursor, err := s.chunks.Find(ctx, bson.M{"documentId": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

// DocumentName resolves a document ID to its filename for context formatting.
func (s *RAGStore) DocumentName(ctx context.Context, documentID string) (string, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Filename, nil
}

// DeleteDocument removes a document and all its chunks. Deleting twice is a
// no-op, not an error.
func (s *RAGStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"documentId": documentID}); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", documentID, err)
	}
	if _, err := s.documents.DeleteOne(ctx, bson.M{"_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// DeleteByConversation cascades a conversation delete to its documents and
// chunks. Idempotent.
func (s *RAGStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"conversationId": conversationID}); err != nil {
		return fmt.Errorf("failed to delete chunks for conversation %s: %w", conversationID, err)
	}
	if _, err := s.documents.DeleteMany(ctx, bson.M{"conversationId": conversationID}); err != nil {
		return fmt.Errorf("failed to delete documents for conversation %s: %w", conversationID, err)
	}
	return nil
}

// StalePendingDocuments returns pending documents older than the cutoff.
// These are failed ingestions the janitor sweeps away.
func (s *RAGStore) StalePendingDocuments(ctx context.Context, olderThan time.Time) ([]models.Document, error) {
	filter := bson.M{
		"status":    models.DocumentStatusPending,
		"createdAt": bson.M{"$lt": olderThan},
	}
	cursor, err := s.documents.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stale documents: %w", err)
	}
	return docs, nil
}
