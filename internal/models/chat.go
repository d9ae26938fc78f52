package models

import "time"

// Tool modes accepted on a turn request.
const (
	ToolModeAuto   = "auto"
	ToolModeSearch = "search"
	ToolModeNone   = "none"
)

// Stream event names for the chat SSE stream. Every stream ends with
// exactly one "done" or one "error" event.
const (
	StreamEventMessage = "message"
	StreamEventDone    = "done"
	StreamEventError   = "error"
)

// Message is a single chat message.
type Message struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// TurnRequest is the input contract for one chat turn.
type TurnRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	ModelName      string `json:"model_name,omitempty"`
	ToolMode       string `json:"tool_mode,omitempty"`
	UseRAG         *bool  `json:"use_rag,omitempty"`
}

// WantsRAG reports the effective use_rag flag (defaults to true, matching the
// request contract).
func (r *TurnRequest) WantsRAG() bool {
	return r.UseRAG == nil || *r.UseRAG
}

// ToolMetadata reports which tools actually fired during a turn. It is
// transient: returned to the caller in the terminating stream event, never
// persisted as its own entity.
type ToolMetadata struct {
	SearchUsed  bool   `json:"search_used"`
	RAGUsed     bool   `json:"rag_used"`
	SearchQuery string `json:"search_query,omitempty"`
	RAGChunks   int    `json:"rag_chunks"`
}

// TurnContext is the mutable per-turn state threaded through the
// orchestration stages. Stage order never branches, so this is a plain
// struct rather than a dynamically-shaped map.
type TurnContext struct {
	Message        string
	UserID         string
	ConversationID string
	ModelID        string
	ToolMode       string
	UseRAG         bool

	MemoryContext string
	ToolContext   string
	ToolMetadata  ToolMetadata
	Response      string
}

// TurnResult is the terminating metadata event of a turn stream.
type TurnResult struct {
	ConversationID string       `json:"conversation_id"`
	ModelUsed      string       `json:"model_used"`
	ToolMetadata   ToolMetadata `json:"tool_metadata"`
}

// ChatResponse is the non-streaming turn response.
type ChatResponse struct {
	Response       string       `json:"response"`
	ConversationID string       `json:"conversation_id"`
	ModelUsed      string       `json:"model_used"`
	ToolMetadata   ToolMetadata `json:"tool_metadata"`
}

// Conversation persists the message history for one thread. Listing and
// editing conversations is handled elsewhere; the pipeline only appends
// exchanges and cascades deletes.
type Conversation struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"user_id"`
	Title     string    `bson:"title" json:"title"`
	ModelName string    `bson:"modelName" json:"model_name"`
	Messages  []Message `bson:"messages" json:"messages"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
