package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"conversa/internal/models"
	"conversa/internal/services"
)

// MemoryHandler handles memory listing and management
type MemoryHandler struct {
	memory *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memory *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memory: memory}
}

// List returns all memories for a user, newest first.
// GET /api/memory/:userId
func (h *MemoryHandler) List(c *fiber.Ctx) error {
	userID := c.Params("userId")
	memories, err := h.memory.ListMemories(c.Context(), userID, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list memories",
		})
	}
	return c.JSON(fiber.Map{"memories": memories})
}

// Save stores user-authored facts, running them through dedup.
// POST /api/memory/:userId
func (h *MemoryHandler) Save(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req struct {
		Facts []string `json:"facts"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.Facts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "facts array is required",
		})
	}

	inserted, err := h.memory.SaveFactsBatch(c.Context(), userID, req.Facts, "manual")
	if err != nil {
		log.Printf("❌ [MEMORY] Manual save failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save facts",
		})
	}
	return c.JSON(fiber.Map{"inserted": inserted, "submitted": len(req.Facts)})
}

// Delete removes one memory by key. Deleting a missing key is a no-op.
// DELETE /api/memory/:userId/:key
func (h *MemoryHandler) Delete(c *fiber.Ctx) error {
	if err := h.memory.Delete(c.Context(), c.Params("userId"), c.Params("key")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete memory",
		})
	}
	return c.JSON(fiber.Map{"deleted": c.Params("key")})
}

// Clear removes every memory in the user's namespace.
// DELETE /api/memory/:userId
func (h *MemoryHandler) Clear(c *fiber.Ctx) error {
	count, err := h.memory.Clear(c.Context(), c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear memories",
		})
	}
	return c.JSON(fiber.Map{"cleared": count})
}

// GetAboutYou returns the user's profile settings.
// GET /api/memory/:userId/about
func (h *MemoryHandler) GetAboutYou(c *fiber.Ctx) error {
	about, err := h.memory.GetAboutYou(c.Context(), c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}
	return c.JSON(about)
}

// PutAboutYou saves the profile settings and mirrors the filled fields as
// core facts so they surface in the memory context.
// PUT /api/memory/:userId/about
func (h *MemoryHandler) PutAboutYou(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var about models.AboutYou
	if err := c.BodyParser(&about); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.memory.SaveAboutYou(c.Context(), userID, &about); err != nil {
		log.Printf("❌ [MEMORY] Failed to save settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save settings",
		})
	}
	return c.JSON(about)
}
