package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conversa/internal/models"
)

// MemoryStore persists long-term memories in the memories collection.
type MemoryStore struct {
	collection *mongo.Collection
}

// NewMemoryStore creates a memory store backed by MongoDB
func NewMemoryStore(db *MongoDB) *MemoryStore {
	return &MemoryStore{collection: db.Collection(CollectionMemories)}
}

// Put upserts a memory by (namespace, key). Core facts overwrite in place;
// fact keys are content-derived so re-saving the same fact is idempotent.
func (s *MemoryStore) Put(ctx context.Context, mem models.Memory) error {
	filter := bson.M{"namespace": mem.Namespace, "key": mem.Key}
	update := bson.M{
		"$set": bson.M{
			"type":    mem.Type,
			"content": mem.Content,
			"source":  mem.Source,
		},
		"$setOnInsert": bson.M{
			"createdAt": mem.CreatedAt,
		},
	}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert memory %s/%s: %w", mem.Namespace, mem.Key, err)
	}
	return nil
}

// Get returns a single memory or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, namespace, key string) (*models.Memory, error) {
	var mem models.Memory
	err := s.collection.FindOne(ctx, bson.M{"namespace": namespace, "key": key}).Decode(&mem)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory %s/%s: %w", namespace, key, err)
	}
	return &mem, nil
}

// List returns memories for a namespace, newest first. A limit of 0 returns
// everything (the dedup cascade needs the full namespace).
func (s *MemoryStore) List(ctx context.Context, namespace string, limit int) ([]models.Memory, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{"namespace": namespace}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find memories: %w", err)
	}
	defer cursor.Close(ctx)

	var memories []models.Memory
	if err := cursor.All(ctx, &memories); err != nil {
		return nil, fmt.Errorf("failed to decode memories: %w", err)
	}
	return memories, nil
}

// Delete removes a single memory; missing keys are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"namespace": namespace, "key": key})
	if err != nil {
		return fmt.Errorf("failed to delete memory %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Clear removes every memory in the namespace.
func (s *MemoryStore) Clear(ctx context.Context, namespace string) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{"namespace": namespace})
	if err != nil {
		return 0, fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	return result.DeletedCount, nil
}
