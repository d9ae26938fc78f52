package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conversa/internal/models"
)

// ConversationStore persists conversation history. The pipeline only appends
// completed exchanges and deletes whole threads; listing and editing belong
// to the surrounding application.
type ConversationStore struct {
	collection *mongo.Collection
}

// NewConversationStore creates a conversation store backed by MongoDB
func NewConversationStore(db *MongoDB) *ConversationStore {
	return &ConversationStore{collection: db.Collection(CollectionConversations)}
}

// AppendExchange appends a user/assistant message pair, creating the
// conversation with a derived title when it does not exist yet.
func (s *ConversationStore) AppendExchange(ctx context.Context, conversationID, userID, modelName string, userMsg, assistantMsg models.Message) error {
	now := time.Now().UTC()

	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": []models.Message{userMsg, assistantMsg}}},
		"$set":  bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"userId":    userID,
			"title":     deriveTitle(userMsg.Content),
			"modelName": modelName,
			"createdAt": now,
		},
	}

	_, err := s.collection.UpdateByID(ctx, conversationID, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to append exchange to %s: %w", conversationID, err)
	}
	return nil
}

// Delete removes the conversation record. Cascading to documents and chunks
// is handled by the conversation service. Idempotent.
func (s *ConversationStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": conversationID})
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	return nil
}

// deriveTitle takes the first line of the first message, truncated to 50
// characters.
func deriveTitle(message string) string {
	title, _, _ := strings.Cut(message, "\n")
	title = strings.TrimSpace(title)
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	if title == "" {
		return "New Chat"
	}
	return title
}
