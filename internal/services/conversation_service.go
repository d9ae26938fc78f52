package services

import (
	"context"
	"log"
	"time"

	"conversa/internal/models"
)

// ConversationStore persists message history.
type ConversationStore interface {
	AppendExchange(ctx context.Context, conversationID, userID, modelName string, userMsg, assistantMsg models.Message) error
	Delete(ctx context.Context, conversationID string) error
}

// ConversationService appends completed exchanges and cascades deletes to
// the conversation's documents and chunks.
type ConversationService struct {
	store    ConversationStore
	ragStore RAGStore
}

// NewConversationService creates a new conversation service
func NewConversationService(store ConversationStore, ragStore RAGStore) *ConversationService {
	return &ConversationService{store: store, ragStore: ragStore}
}

// RecordExchange appends the user/assistant pair to the conversation.
func (s *ConversationService) RecordExchange(ctx context.Context, turn *models.TurnContext) error {
	now := time.Now().UTC()
	return s.store.AppendExchange(ctx, turn.ConversationID, turn.UserID, turn.ModelID,
		models.Message{Role: "user", Content: turn.Message, Timestamp: now},
		models.Message{Role: "assistant", Content: turn.Response, Timestamp: now},
	)
}

// Delete removes the conversation and everything it owns. Deleting twice
// is a no-op.
func (s *ConversationService) Delete(ctx context.Context, conversationID string) error {
	if err := s.ragStore.DeleteByConversation(ctx, conversationID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, conversationID); err != nil {
		return err
	}
	log.Printf("🗑️ [CONVERSATION] Deleted conversation %s and its documents", conversationID)
	return nil
}
