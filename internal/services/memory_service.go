package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"conversa/internal/models"
)

// Token-overlap dedup is only meaningful once both facts carry more than a
// couple of words; below that the exact and substring tiers already cover it.
const (
	dedupMinTokens    = 2
	dedupOverlapRatio = 0.80
)

// MemoryStore is the persistence contract for long-term memories. Records are
// namespaced per user and keyed uniquely within the namespace.
type MemoryStore interface {
	Put(ctx context.Context, mem models.Memory) error
	Get(ctx context.Context, namespace, key string) (*models.Memory, error)
	List(ctx context.Context, namespace string, limit int) ([]models.Memory, error)
	Delete(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context, namespace string) (int64, error)
}

// SettingsStore exposes the per-user settings the memory pipeline consults.
type SettingsStore interface {
	GetAboutYou(ctx context.Context, userID string) (*models.AboutYou, error)
	PutAboutYou(ctx context.Context, userID string, about models.AboutYou) error
}

// MemoryService handles CRUD and deduplication for long-term user facts.
type MemoryService struct {
	store        MemoryStore
	settings     SettingsStore
	contextLimit int
}

// NewMemoryService creates a new memory service
func NewMemoryService(store MemoryStore, settings SettingsStore, contextLimit int) *MemoryService {
	if contextLimit <= 0 {
		contextLimit = 20
	}
	return &MemoryService{store: store, settings: settings, contextLimit: contextLimit}
}

// GetContextMemories returns the formatted memory block for a turn, or an
// empty string when the user has no facts or has disabled memory. Memories
// are ordered most-recent-first.
func (s *MemoryService) GetContextMemories(ctx context.Context, namespace, query string, limit int) (string, error) {
	if s.settings != nil {
		about, err := s.settings.GetAboutYou(ctx, namespace)
		if err == nil && about != nil && !about.MemoryEnabled {
			return "", nil
		}
	}

	if limit <= 0 {
		limit = s.contextLimit
	}

	memories, err := s.store.List(ctx, namespace, limit)
	if err != nil {
		return "", fmt.Errorf("failed to list memories: %w", err)
	}
	if len(memories) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Things I remember about you:\n")
	for _, mem := range memories {
		if mem.Content == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(mem.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// SaveFactsBatch runs every candidate through the dedup cascade against all
// existing memories in the namespace and inserts the survivors. Returns the
// number of facts actually inserted. Duplicates are skipped silently: a
// re-extracted fact is idempotency at work, not a failure.
func (s *MemoryService) SaveFactsBatch(ctx context.Context, namespace string, facts []string, source string) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	existing, err := s.store.List(ctx, namespace, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load existing memories: %w", err)
	}

	existingContents := make([]string, 0, len(existing))
	for _, mem := range existing {
		existingContents = append(existingContents, mem.Content)
	}

	inserted := 0
	for _, fact := range facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}

		if isDuplicateFact(fact, existingContents) {
			log.Printf("🔁 [MEMORY] Skipping duplicate fact for %s", namespace)
			continue
		}

		mem := models.Memory{
			Namespace: namespace,
			Key:       factKey(fact),
			Type:      models.MemoryTypeFact,
			Content:   fact,
			Source:    source,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.Put(ctx, mem); err != nil {
			return inserted, fmt.Errorf("failed to save fact: %w", err)
		}
		existingContents = append(existingContents, fact)
		inserted++
	}

	if inserted > 0 {
		log.Printf("🧠 [MEMORY] Saved %d/%d facts for %s (source: %s)", inserted, len(facts), namespace, source)
	}
	return inserted, nil
}

// UpsertCoreFact writes a core fact under its deterministic per-field key,
// replacing any previous value for that field.
func (s *MemoryService) UpsertCoreFact(ctx context.Context, namespace, field, content string) error {
	mem := models.Memory{
		Namespace: namespace,
		Key:       "core_" + field,
		Type:      models.MemoryTypeCoreFact,
		Content:   content,
		Source:    "settings",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Put(ctx, mem); err != nil {
		return fmt.Errorf("failed to upsert core fact %q: %w", field, err)
	}
	return nil
}

// GetAboutYou returns the user's profile settings.
func (s *MemoryService) GetAboutYou(ctx context.Context, namespace string) (*models.AboutYou, error) {
	return s.settings.GetAboutYou(ctx, namespace)
}

// SaveAboutYou stores the profile settings and mirrors each filled field
// into a core fact so the generation prompt can see it.
func (s *MemoryService) SaveAboutYou(ctx context.Context, namespace string, about *models.AboutYou) error {
	if err := s.settings.PutAboutYou(ctx, namespace, *about); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	fields := map[string]string{
		"nickname":   about.Nickname,
		"occupation": about.Occupation,
		"about":      about.About,
	}
	for field, value := range fields {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		var content string
		switch field {
		case "nickname":
			content = "The user prefers to be called " + value
		case "occupation":
			content = "The user works as " + value
		default:
			content = "About the user: " + value
		}
		if err := s.UpsertCoreFact(ctx, namespace, field, content); err != nil {
			return err
		}
	}
	return nil
}

// ListMemories returns the raw memory records for a namespace.
func (s *MemoryService) ListMemories(ctx context.Context, namespace string, limit int) ([]models.Memory, error) {
	return s.store.List(ctx, namespace, limit)
}

// Delete removes a single memory. Deleting a missing key is a no-op.
func (s *MemoryService) Delete(ctx context.Context, namespace, key string) error {
	return s.store.Delete(ctx, namespace, key)
}

// Clear removes every memory in the namespace and returns the count removed.
// Clearing an empty namespace is a no-op.
func (s *MemoryService) Clear(ctx context.Context, namespace string) (int64, error) {
	return s.store.Clear(ctx, namespace)
}

// isDuplicateFact runs the three-tier cascade: exact match, substring
// containment in either direction, then token-set overlap. The overlap ratio
// uses the smaller set's size so a short restatement of a long fact still
// registers, and the 0.80 boundary is inclusive.
func isDuplicateFact(candidate string, existing []string) bool {
	candNorm := normalizeFact(candidate)
	candTokens := tokenSet(candNorm)

	for _, other := range existing {
		otherNorm := normalizeFact(other)

		if candNorm == otherNorm {
			return true
		}

		if strings.Contains(candNorm, otherNorm) || strings.Contains(otherNorm, candNorm) {
			return true
		}

		otherTokens := tokenSet(otherNorm)
		if len(candTokens) <= dedupMinTokens || len(otherTokens) <= dedupMinTokens {
			continue
		}
		if tokenOverlapRatio(candTokens, otherTokens) >= dedupOverlapRatio {
			return true
		}
	}
	return false
}

// normalizeFact lowercases and trims for case-insensitive comparison.
func normalizeFact(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenSet splits on whitespace into a set.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// tokenOverlapRatio is |intersection| / min(|a|, |b|).
func tokenOverlapRatio(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}

	overlap := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(small))
}

// factKey derives a deterministic key from the normalized fact content so
// that re-extraction of the same fact maps to the same record.
func factKey(fact string) string {
	sum := sha256.Sum256([]byte(normalizeFact(fact)))
	return "fact_" + hex.EncodeToString(sum[:])[:16]
}
