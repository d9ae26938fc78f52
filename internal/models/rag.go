package models

import "time"

// Document ingestion states. A document stays pending until every chunk has
// been embedded and persisted; retrieval only ever sees ready documents.
const (
	DocumentStatusPending = "pending"
	DocumentStatusReady   = "ready"
)

// Document is the metadata record for an ingested file. A document is owned
// by exactly one conversation; deleting the conversation cascades to the
// document and its chunks.
type Document struct {
	DocumentID     string    `bson:"_id" json:"document_id"`
	Filename       string    `bson:"filename" json:"filename"`
	UserID         string    `bson:"userId" json:"user_id"`
	ConversationID string    `bson:"conversationId" json:"conversation_id"`
	ChunkCount     int       `bson:"chunkCount" json:"chunk_count"`
	TextLength     int       `bson:"textLength" json:"text_length"`
	Status         string    `bson:"status" json:"status"`
	EmbeddingModel string    `bson:"embeddingModel" json:"embedding_model"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`
}

// Chunk is a bounded slice of a document's text paired with its embedding.
// The embedding dimension is constant across the store and the model name is
// recorded so query-time mismatches can be rejected instead of silently
// producing garbage similarity scores.
type Chunk struct {
	ChunkID        string    `bson:"_id" json:"chunk_id"`
	DocumentID     string    `bson:"documentId" json:"document_id"`
	ConversationID string    `bson:"conversationId" json:"conversation_id"`
	UserID         string    `bson:"userId" json:"user_id"`
	Index          int       `bson:"chunkIndex" json:"index"`
	Text           string    `bson:"text" json:"text"`
	Embedding      []float64 `bson:"embedding" json:"-"`
	EmbeddingModel string    `bson:"embeddingModel" json:"embedding_model"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`
}

// ScoredChunk is a chunk paired with its query similarity and the name of the
// document it came from.
type ScoredChunk struct {
	Text         string  `json:"text"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Index        int     `json:"index"`
	Score        float64 `json:"score"`
}
