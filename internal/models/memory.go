package models

import "time"

// Memory types. Core facts have deterministic keys and are overwritten on
// update; plain facts are keyed by a content hash so re-extraction is
// idempotent.
const (
	MemoryTypeFact     = "fact"
	MemoryTypeCoreFact = "core_fact"
)

// Memory is a single long-term fact stored in a user's namespace.
type Memory struct {
	Namespace string    `bson:"namespace" json:"namespace"`
	Key       string    `bson:"key" json:"key"`
	Type      string    `bson:"type" json:"type"`
	Content   string    `bson:"content" json:"content"`
	Source    string    `bson:"source" json:"source"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// AboutYou holds the user's profile settings that are mirrored into core
// facts so the assistant can use them.
type AboutYou struct {
	Nickname      string `bson:"nickname" json:"nickname"`
	Occupation    string `bson:"occupation" json:"occupation"`
	About         string `bson:"about" json:"about"`
	MemoryEnabled bool   `bson:"memoryEnabled" json:"memory_enabled"`
}
