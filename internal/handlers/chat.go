package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"conversa/internal/models"
	"conversa/internal/services"
)

// ChatHandler handles HTTP requests for chat turns
type ChatHandler struct {
	orchestrator *services.Orchestrator
	turnTimeout  time.Duration
}

// NewChatHandler creates a new chat handler
func NewChatHandler(orchestrator *services.Orchestrator, turnTimeout time.Duration) *ChatHandler {
	if turnTimeout <= 0 {
		turnTimeout = 5 * time.Minute
	}
	return &ChatHandler{orchestrator: orchestrator, turnTimeout: turnTimeout}
}

// Stream processes a chat turn and streams the response as SSE events:
// "message" events carry content tokens, one "done" event carries the turn
// metadata, and "error" reports a failed generation.
// POST /api/chat/stream
func (h *ChatHandler) Stream(c *fiber.Ctx) error {
	var req models.TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := services.ValidateRequest(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout)
		defer cancel()

		result, err := h.orchestrator.ProcessTurn(ctx, &req, func(token string) error {
			// Tokens may contain newlines, which would break SSE framing.
			encoded, _ := json.Marshal(token)
			if err := writeSSE(w, models.StreamEventMessage, string(encoded)); err != nil {
				// Client gone; abort the upstream stream.
				cancel()
				return err
			}
			return nil
		})
		if err != nil {
			log.Printf("❌ [CHAT] Turn failed: %v", err)
			writeSSE(w, models.StreamEventError, fmt.Sprintf(`{"error":%q}`, err.Error()))
			return
		}

		payload, err := json.Marshal(result)
		if err != nil {
			writeSSE(w, models.StreamEventError, `{"error":"failed to encode result"}`)
			return
		}
		writeSSE(w, models.StreamEventDone, string(payload))
	}))
	return nil
}

// Chat processes a chat turn and returns the full response at once.
// POST /api/chat
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req models.TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.turnTimeout)
	defer cancel()

	var full string
	result, err := h.orchestrator.ProcessTurn(ctx, &req, func(token string) error {
		full += token
		return nil
	})
	if err != nil {
		if vErr := services.ValidateRequest(&req); vErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Error()})
		}
		log.Printf("❌ [CHAT] Turn failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate response",
		})
	}

	return c.JSON(models.ChatResponse{
		Response:       full,
		ConversationID: result.ConversationID,
		ModelUsed:      result.ModelUsed,
		ToolMetadata:   result.ToolMetadata,
	})
}

// writeSSE writes one SSE event and flushes it to the client immediately.
func writeSSE(w *bufio.Writer, event, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
