package services

import (
	"context"
	"strings"

	"conversa/internal/models"
)

const basePersona = `You are a helpful, friendly, and knowledgeable AI assistant. You engage in natural conversation while being accurate and informative.

Guidelines:
- Be conversational and warm, but stay focused on being helpful
- If you don't know something, admit it honestly
- Provide clear, well-structured responses
- Use markdown formatting when it helps readability
- Remember context from the conversation`

const groundingInstructions = `When answering from the provided web search results, cite the source URL for each claim you take from them. Use the supplied content directly instead of telling the user to check a website themselves. If the provided context does not contain enough information to answer, say so explicitly.`

// ResponseService assembles the grounded system prompt and streams the
// model's reply.
type ResponseService struct {
	llm LLMClient
}

// NewResponseService creates a new response service
func NewResponseService(llm LLMClient) *ResponseService {
	return &ResponseService{llm: llm}
}

// BuildSystemPrompt layers the persona with whatever context the turn
// gathered. Empty blocks are omitted entirely.
func (s *ResponseService) BuildSystemPrompt(turn *models.TurnContext) string {
	sections := []string{basePersona}
	if turn.MemoryContext != "" {
		sections = append(sections, turn.MemoryContext)
	}
	if turn.ToolContext != "" {
		sections = append(sections, turn.ToolContext, groundingInstructions)
	}
	return strings.Join(sections, "\n\n")
}

// Generate streams the model's reply for the turn, forwarding tokens to
// onToken as they arrive, and stores the accumulated text on the turn.
func (s *ResponseService) Generate(ctx context.Context, turn *models.TurnContext, onToken func(token string) error) error {
	full, err := s.llm.StreamCompletion(ctx, CompletionRequest{
		Model:        turn.ModelID,
		SystemPrompt: s.BuildSystemPrompt(turn),
		Messages:     []models.Message{{Role: "user", Content: turn.Message}},
	}, onToken)
	if err != nil {
		return err
	}
	turn.Response = full
	return nil
}
