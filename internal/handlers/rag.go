package handlers

import (
	"io"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"conversa/internal/services"
)

const maxUploadSize = 50 * 1024 * 1024

// RAGHandler handles document upload, listing, and deletion
type RAGHandler struct {
	ingestor      *services.RAGIngestService
	conversations *services.ConversationService
}

// NewRAGHandler creates a new RAG handler
func NewRAGHandler(ingestor *services.RAGIngestService, conversations *services.ConversationService) *RAGHandler {
	return &RAGHandler{ingestor: ingestor, conversations: conversations}
}

// Upload ingests an uploaded document into a conversation's document set.
// POST /api/rag/upload (multipart: file, user_id, conversation_id)
func (h *RAGHandler) Upload(c *fiber.Ctx) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}
	conversationID := c.FormValue("conversation_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}
	if fileHeader.Size > maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "file exceeds maximum size",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}

	filename := fileHeader.Filename
	var doc interface{}
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		doc, err = h.ingestor.IngestPDF(c.Context(), data, filename, userID, conversationID)
	} else {
		doc, err = h.ingestor.IngestText(c.Context(), string(data), filename, userID, conversationID)
	}
	if err != nil {
		log.Printf("❌ [RAG] Ingestion failed for %s: %v", filename, err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// List returns the ready documents for a conversation.
// GET /api/rag/documents/:conversationId
func (h *RAGHandler) List(c *fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	docs, err := h.ingestor.ListDocuments(c.Context(), conversationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}
	return c.JSON(fiber.Map{"documents": docs})
}

// DeleteDocument removes one document and its chunks.
// DELETE /api/rag/documents/:conversationId/:documentId
func (h *RAGHandler) DeleteDocument(c *fiber.Ctx) error {
	documentID := c.Params("documentId")
	if err := h.ingestor.DeleteDocument(c.Context(), documentID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}
	return c.JSON(fiber.Map{"deleted": documentID})
}

// DeleteConversation removes a conversation and cascades to its documents.
// DELETE /api/conversations/:id
func (h *RAGHandler) DeleteConversation(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if err := h.conversations.Delete(c.Context(), conversationID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete conversation",
		})
	}
	return c.JSON(fiber.Map{"deleted": conversationID})
}
