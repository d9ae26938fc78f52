package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"conversa/internal/models"
)

// ProviderService loads the model catalog from providers.json and hot
// reloads it when the file changes, so models can be added without a
// restart.
type ProviderService struct {
	mu      sync.RWMutex
	path    string
	config  models.ProvidersConfig
	watcher *fsnotify.Watcher
}

// NewProviderService loads the catalog and starts watching the file.
func NewProviderService(path string) (*ProviderService, error) {
	s := &ProviderService{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️ [PROVIDER] File watching disabled: %v", err)
		return s, nil
	}
	if err := watcher.Add(path); err != nil {
		log.Printf("⚠️ [PROVIDER] Could not watch %s: %v", path, err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

func (s *ProviderService) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				log.Printf("❌ [PROVIDER] Reload failed, keeping previous catalog: %v", err)
				continue
			}
			log.Printf("🔄 [PROVIDER] Reloaded model catalog from %s", s.path)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ [PROVIDER] Watcher error: %v", err)
		}
	}
}

func (s *ProviderService) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read providers file: %w", err)
	}
	var config models.ProvidersConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse providers file: %w", err)
	}
	if config.DefaultModel == "" {
		return fmt.Errorf("providers file missing default_model")
	}

	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	return nil
}

// Close stops the file watcher.
func (s *ProviderService) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// BaseURL returns the provider endpoint.
func (s *ProviderService) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.BaseURL
}

// APIKey resolves the provider API key from the configured env var.
func (s *ProviderService) APIKey() string {
	s.mu.RLock()
	env := s.config.APIKeyEnv
	s.mu.RUnlock()
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// Resolve maps a requested model name to a catalog entry, falling back to
// the default model when the name is empty or unknown.
func (s *ProviderService) Resolve(requested string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if requested == "" {
		return s.config.DefaultModel
	}
	for _, m := range s.config.Models {
		if m.ID == requested {
			return m.ID
		}
	}
	log.Printf("⚠️ [PROVIDER] Unknown model %q, using default %s", requested, s.config.DefaultModel)
	return s.config.DefaultModel
}

// ExtractorModel returns the fast model used for fact extraction, falling
// back to the default model when none is configured.
func (s *ProviderService) ExtractorModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config.ExtractorModel != "" {
		return s.config.ExtractorModel
	}
	return s.config.DefaultModel
}

// Models lists the catalog.
func (s *ProviderService) Models() []models.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ModelInfo, len(s.config.Models))
	copy(out, s.config.Models)
	return out
}
