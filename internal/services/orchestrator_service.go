package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"conversa/internal/logging"
	"conversa/internal/models"
)

// Orchestrator sequences one chat turn through its four stages:
// load memory, load tool context, generate, extract. Memory and tool
// failures degrade to empty context; a generation failure fails the turn;
// extraction failures are logged and swallowed.
type Orchestrator struct {
	memory        *MemoryService
	router        *ToolRouter
	search        *SearchService
	retriever     *RAGRetrievalService
	responder     *ResponseService
	extractor     *FactExtractionService
	conversations *ConversationService
	provider      *ProviderService
	metrics       *Metrics

	extractTimeout time.Duration
}

// NewOrchestrator creates a new turn orchestrator
func NewOrchestrator(
	memory *MemoryService,
	router *ToolRouter,
	search *SearchService,
	retriever *RAGRetrievalService,
	responder *ResponseService,
	extractor *FactExtractionService,
	conversations *ConversationService,
	provider *ProviderService,
	metrics *Metrics,
	extractTimeout time.Duration,
) *Orchestrator {
	if extractTimeout <= 0 {
		extractTimeout = 30 * time.Second
	}
	return &Orchestrator{
		memory:         memory,
		router:         router,
		search:         search,
		retriever:      retriever,
		responder:      responder,
		extractor:      extractor,
		conversations:  conversations,
		provider:       provider,
		metrics:        metrics,
		extractTimeout: extractTimeout,
	}
}

// ValidateRequest rejects malformed turn requests before orchestration.
func ValidateRequest(req *models.TurnRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if req.Message == "" {
		return fmt.Errorf("message is required")
	}
	switch req.ToolMode {
	case "", models.ToolModeAuto, models.ToolModeSearch, models.ToolModeNone:
	default:
		return fmt.Errorf("unknown tool_mode: %q", req.ToolMode)
	}
	return nil
}

// ProcessTurn runs the full pipeline for one request, streaming tokens to
// onToken as they arrive. The returned result carries the metadata for the
// terminating stream event.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *models.TurnRequest, onToken func(token string) error) (*models.TurnResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	start := time.Now()

	toolMode := req.ToolMode
	if toolMode == "" {
		toolMode = models.ToolModeAuto
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	turn := &models.TurnContext{
		Message:        req.Message,
		UserID:         req.UserID,
		ConversationID: conversationID,
		ModelID:        o.provider.Resolve(req.ModelName),
		ToolMode:       toolMode,
		UseRAG:         req.WantsRAG(),
	}

	o.loadMemory(ctx, turn)
	o.loadToolContext(ctx, turn)

	if err := o.responder.Generate(ctx, turn, onToken); err != nil {
		o.metrics.RecordTurnError("generate")
		o.metrics.RecordTurn("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	o.persistExchange(ctx, turn)
	o.extractFacts(ctx, turn)

	o.metrics.RecordTurn("ok", time.Since(start).Seconds())
	logging.WithTurn(turn.UserID, turn.ConversationID, turn.ModelID).Info("turn completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"search_used", turn.ToolMetadata.SearchUsed,
		"rag_chunks", turn.ToolMetadata.RAGChunks,
	)
	return &models.TurnResult{
		ConversationID: turn.ConversationID,
		ModelUsed:      turn.ModelID,
		ToolMetadata:   turn.ToolMetadata,
	}, nil
}

// loadMemory fills the memory context block. Failures degrade to empty.
func (o *Orchestrator) loadMemory(ctx context.Context, turn *models.TurnContext) {
	memCtx, err := o.memory.GetContextMemories(ctx, turn.UserID, turn.Message, 0)
	if err != nil {
		log.Printf("⚠️ [TURN] Memory load failed, continuing without: %v", err)
		o.metrics.RecordTurnError("load_memory")
		return
	}
	turn.MemoryContext = memCtx
}

// loadToolContext runs search and retrieval as the router decided. Either
// tool failing degrades that tool's context to empty and the turn proceeds.
func (o *Orchestrator) loadToolContext(ctx context.Context, turn *models.TurnContext) {
	var blocks []string

	if o.router.ShouldSearch(turn.Message, turn.ToolMode) {
		turn.ToolMetadata.SearchQuery = turn.Message
		resp, err := o.search.Search(ctx, turn.Message)
		if err != nil {
			log.Printf("⚠️ [TURN] Search failed, continuing without: %v", err)
			o.metrics.RecordTurnError("search")
			o.metrics.RecordSearch("error")
		} else {
			blocks = append(blocks, o.search.BuildContext(resp))
			turn.ToolMetadata.SearchUsed = true
			o.metrics.RecordSearch("ok")
		}
	}

	if o.router.ShouldRetrieve(ctx, turn.ConversationID, turn.UseRAG) {
		chunks, err := o.retriever.Retrieve(ctx, turn.Message, turn.ConversationID)
		if err != nil {
			log.Printf("⚠️ [TURN] Retrieval failed, continuing without: %v", err)
			o.metrics.RecordTurnError("retrieval")
		} else {
			o.metrics.RecordRetrieval(len(chunks))
			if len(chunks) > 0 {
				blocks = append(blocks, o.retriever.BuildContext(chunks))
				turn.ToolMetadata.RAGUsed = true
				turn.ToolMetadata.RAGChunks = len(chunks)
			}
		}
	}

	if len(blocks) > 0 {
		turn.ToolContext = blocks[0]
		for _, b := range blocks[1:] {
			turn.ToolContext += "\n\n" + b
		}
	}
}

// persistExchange appends the exchange after delivery. The response already
// reached the caller, so a store failure is logged rather than surfaced.
func (o *Orchestrator) persistExchange(ctx context.Context, turn *models.TurnContext) {
	if err := o.conversations.RecordExchange(context.WithoutCancel(ctx), turn); err != nil {
		log.Printf("❌ [TURN] Failed to persist exchange for %s: %v", turn.ConversationID, err)
		o.metrics.RecordTurnError("persist")
	}
}

// extractFacts runs the post-hoc extraction stage. Skipped entirely when
// the caller already disconnected because nobody received the response.
func (o *Orchestrator) extractFacts(ctx context.Context, turn *models.TurnContext) {
	if ctx.Err() != nil {
		log.Printf("🚫 [TURN] Caller gone, skipping extraction for %s", turn.ConversationID)
		return
	}

	extractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.extractTimeout)
	defer cancel()

	if _, err := o.extractor.ExtractAndSave(extractCtx, turn.UserID, turn.Message, turn.Response); err != nil {
		log.Printf("⚠️ [TURN] Fact extraction failed (ignored): %v", err)
		o.metrics.RecordTurnError("extract")
	}
}
