package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conversa/internal/models"
)

// SettingsStore persists per-user settings (the "About You" profile).
type SettingsStore struct {
	collection *mongo.Collection
}

// NewSettingsStore creates a settings store backed by MongoDB
func NewSettingsStore(db *MongoDB) *SettingsStore {
	return &SettingsStore{collection: db.Collection(CollectionUserSettings)}
}

// GetAboutYou returns the user's profile settings. Users without a stored
// profile get the defaults (memory enabled, everything empty).
func (s *SettingsStore) GetAboutYou(ctx context.Context, userID string) (*models.AboutYou, error) {
	var about models.AboutYou
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&about)
	if err == mongo.ErrNoDocuments {
		return &models.AboutYou{MemoryEnabled: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for %s: %w", userID, err)
	}
	return &about, nil
}

// PutAboutYou upserts the user's profile settings.
func (s *SettingsStore) PutAboutYou(ctx context.Context, userID string, about models.AboutYou) error {
	update := bson.M{"$set": bson.M{
		"nickname":      about.Nickname,
		"occupation":    about.Occupation,
		"about":         about.About,
		"memoryEnabled": about.MemoryEnabled,
	}}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save settings for %s: %w", userID, err)
	}
	return nil
}
