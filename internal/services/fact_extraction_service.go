package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"conversa/internal/models"
)

const extractionPrompt = `Based on the conversation, extract any important facts or preferences about the user that should be remembered for future conversations.

Focus on:
- Personal details the user shares (name, profession, interests)
- Preferences they express (communication style, topics of interest)
- Important context about their situation or needs

Respond with a JSON array of facts. If no facts to extract, respond with an empty array.

Example response:
["The user's name is John", "The user prefers concise responses", "The user is learning Python"]

Conversation:
%s

Extract facts (JSON array only):`

// Extraction only runs on exchanges substantial enough to carry facts.
const (
	extractMinMessageLen  = 10
	extractMinExchangeLen = 50
)

// FactExtractionService runs a fast model over the completed exchange and
// stores any self-referential facts it finds.
type FactExtractionService struct {
	llm            LLMClient
	memory         *MemoryService
	extractorModel string
}

// NewFactExtractionService creates a new fact extraction service
func NewFactExtractionService(llm LLMClient, memory *MemoryService, extractorModel string) *FactExtractionService {
	return &FactExtractionService{llm: llm, memory: memory, extractorModel: extractorModel}
}

// ShouldExtract reports whether the exchange is worth an extraction call.
func (s *FactExtractionService) ShouldExtract(userMessage, assistantResponse string) bool {
	if len(strings.TrimSpace(userMessage)) <= extractMinMessageLen {
		return false
	}
	return len(userMessage)+len(assistantResponse) > extractMinExchangeLen
}

// ExtractAndSave extracts facts from the exchange and saves the ones that
// survive dedup. Returns the number inserted.
func (s *FactExtractionService) ExtractAndSave(ctx context.Context, userID, userMessage, assistantResponse string) (int, error) {
	if !s.ShouldExtract(userMessage, assistantResponse) {
		return 0, nil
	}

	conversation := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantResponse)
	raw, err := s.llm.Complete(ctx, CompletionRequest{
		Model:        s.extractorModel,
		SystemPrompt: "You extract user facts from conversations. Respond only with a JSON array of strings.",
		Messages: []models.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, conversation)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return 0, fmt.Errorf("extraction call failed: %w", err)
	}

	facts := parseFactArray(raw)
	if len(facts) == 0 {
		return 0, nil
	}

	inserted, err := s.memory.SaveFactsBatch(ctx, userID, facts, "extraction")
	if err != nil {
		return 0, err
	}
	GetMetrics().RecordExtraction(inserted, len(facts)-inserted)
	log.Printf("🧠 [EXTRACT] Saved %d/%d facts for user %s", inserted, len(facts), userID)
	return inserted, nil
}

// parseFactArray tolerates code fences and leading prose around the JSON
// array; anything unparseable yields an empty list.
func parseFactArray(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	// Models sometimes wrap the array in prose. Cut to the outermost brackets.
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil
	}

	var facts []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &facts); err != nil {
		return nil
	}

	cleaned := facts[:0]
	for _, fact := range facts {
		if fact = strings.TrimSpace(fact); fact != "" {
			cleaned = append(cleaned, fact)
		}
	}
	return cleaned
}
