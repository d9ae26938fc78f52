package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"conversa/internal/models"
)

// In-memory store fakes shared across the service tests.

type fakeMemoryStore struct {
	mu      sync.Mutex
	records map[string]models.Memory // namespace + "/" + key
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{records: make(map[string]models.Memory)}
}

func (s *fakeMemoryStore) Put(_ context.Context, mem models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[mem.Namespace+"/"+mem.Key] = mem
	return nil
}

func (s *fakeMemoryStore) Get(_ context.Context, namespace, key string) (*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mem, ok := s.records[namespace+"/"+key]; ok {
		return &mem, nil
	}
	return nil, nil
}

func (s *fakeMemoryStore) List(_ context.Context, namespace string, limit int) ([]models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Memory
	for k, mem := range s.records {
		if strings.HasPrefix(k, namespace+"/") {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeMemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, namespace+"/"+key)
	return nil
}

func (s *fakeMemoryStore) Clear(_ context.Context, namespace string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k := range s.records {
		if strings.HasPrefix(k, namespace+"/") {
			delete(s.records, k)
			count++
		}
	}
	return count, nil
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings map[string]models.AboutYou
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{settings: make(map[string]models.AboutYou)}
}

func (s *fakeSettingsStore) GetAboutYou(_ context.Context, userID string) (*models.AboutYou, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if about, ok := s.settings[userID]; ok {
		return &about, nil
	}
	return &models.AboutYou{MemoryEnabled: true}, nil
}

func (s *fakeSettingsStore) PutAboutYou(_ context.Context, userID string, about models.AboutYou) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[userID] = about
	return nil
}

type fakeRAGStore struct {
	mu        sync.Mutex
	documents map[string]models.Document
	chunks    map[string][]models.Chunk // documentID -> chunks
}

func newFakeRAGStore() *fakeRAGStore {
	return &fakeRAGStore{
		documents: make(map[string]models.Document),
		chunks:    make(map[string][]models.Chunk),
	}
}

func (s *fakeRAGStore) InsertDocument(_ context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.DocumentID] = doc
	return nil
}

func (s *fakeRAGStore) InsertChunks(_ context.Context, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.DocumentID] = append(s.chunks[c.DocumentID], c)
	}
	return nil
}

func (s *fakeRAGStore) MarkDocumentReady(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return fmt.Errorf("document %s not found", documentID)
	}
	doc.Status = models.DocumentStatusReady
	s.documents[documentID] = doc
	return nil
}

func (s *fakeRAGStore) ReadyDocuments(_ context.Context, conversationID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, doc := range s.documents {
		if doc.ConversationID == conversationID && doc.Status == models.DocumentStatusReady {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *fakeRAGStore) HasReadyDocuments(ctx context.Context, conversationID string) (bool, error) {
	docs, err := s.ReadyDocuments(ctx, conversationID)
	return len(docs) > 0, err
}

func (s *fakeRAGStore) ChunksByConversation(ctx context.Context, conversationID string) ([]models.Chunk, error) {
	docs, err := s.ReadyDocuments(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chunk
	for _, doc := range docs {
		out = append(out, s.chunks[doc.DocumentID]...)
	}
	return out, nil
}

func (s *fakeRAGStore) DocumentName(_ context.Context, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.documents[documentID]; ok {
		return doc.Filename, nil
	}
	return "", fmt.Errorf("document %s not found", documentID)
}

func (s *fakeRAGStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, documentID)
	delete(s.chunks, documentID)
	return nil
}

func (s *fakeRAGStore) DeleteByConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, doc := range s.documents {
		if doc.ConversationID == conversationID {
			delete(s.documents, id)
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *fakeRAGStore) StalePendingDocuments(_ context.Context, olderThan time.Time) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, doc := range s.documents {
		if doc.Status == models.DocumentStatusPending && doc.CreatedAt.Before(olderThan) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// fakeEmbedder produces deterministic vectors from token counts so cosine
// similarity behaves predictably: identical text scores 1.0.
type fakeEmbedder struct {
	model   string
	failing bool
}

func (e *fakeEmbedder) Model() string {
	if e.model == "" {
		return "fake-embed"
	}
	return e.model
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if e.failing {
		return nil, fmt.Errorf("embedder unavailable")
	}
	// Bag-of-words hashed into a fixed dimension: identical text scores
	// 1.0, disjoint topics score low.
	vec := make([]float64, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,!?")))
		vec[h.Sum32()%64]++
	}
	return vec, nil
}

// fakeLLM returns canned output and records what it was asked.
type fakeLLM struct {
	mu           sync.Mutex
	streamOutput []string
	completeOut  string
	streamErr    error
	completeErr  error

	lastSystemPrompt string
	completeCalls    int
}

func (l *fakeLLM) StreamCompletion(_ context.Context, req CompletionRequest, onToken func(string) error) (string, error) {
	l.mu.Lock()
	l.lastSystemPrompt = req.SystemPrompt
	l.mu.Unlock()
	if l.streamErr != nil {
		return "", l.streamErr
	}
	var full strings.Builder
	for _, tok := range l.streamOutput {
		full.WriteString(tok)
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

func (l *fakeLLM) Complete(_ context.Context, req CompletionRequest) (string, error) {
	l.mu.Lock()
	l.completeCalls++
	l.mu.Unlock()
	if l.completeErr != nil {
		return "", l.completeErr
	}
	return l.completeOut, nil
}

type fakeSearchProvider struct {
	mu      sync.Mutex
	queries []string
	resp    *models.SearchResponse
	err     error
}

func (p *fakeSearchProvider) Search(_ context.Context, query string) (*models.SearchResponse, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	resp := *p.resp
	resp.Query = query
	return &resp, nil
}

type fakeConversationStore struct {
	mu        sync.Mutex
	exchanges map[string][]models.Message
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{exchanges: make(map[string][]models.Message)}
}

func (s *fakeConversationStore) AppendExchange(_ context.Context, conversationID, userID, modelName string, userMsg, assistantMsg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges[conversationID] = append(s.exchanges[conversationID], userMsg, assistantMsg)
	return nil
}

func (s *fakeConversationStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exchanges, conversationID)
	return nil
}
