package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JanitorService periodically removes documents stuck in the pending state.
// A pending document means an ingestion crashed between inserting metadata
// and marking it ready; sweeping them keeps the invariant that retrieval
// only ever sees fully ingested documents.
type JanitorService struct {
	store     RAGStore
	scheduler gocron.Scheduler
	maxAge    time.Duration
	interval  time.Duration
}

// NewJanitorService creates a new janitor service
func NewJanitorService(store RAGStore, interval, maxAge time.Duration) (*JanitorService, error) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &JanitorService{
		store:     store,
		scheduler: scheduler,
		maxAge:    maxAge,
		interval:  interval,
	}, nil
}

// Start schedules the sweep and begins running it.
func (s *JanitorService) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			s.sweep(ctx)
		}),
		gocron.WithName("stale-pending-sweep"),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	log.Printf("🧹 [JANITOR] Sweeping stale pending documents every %s (max age %s)", s.interval, s.maxAge)
	return nil
}

// Stop shuts the scheduler down.
func (s *JanitorService) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ [JANITOR] Shutdown error: %v", err)
	}
}

func (s *JanitorService) sweep(ctx context.Context) {
	stale, err := s.store.StalePendingDocuments(ctx, time.Now().UTC().Add(-s.maxAge))
	if err != nil {
		log.Printf("⚠️ [JANITOR] Failed to list stale documents: %v", err)
		return
	}
	for _, doc := range stale {
		if err := s.store.DeleteDocument(ctx, doc.DocumentID); err != nil {
			log.Printf("⚠️ [JANITOR] Failed to delete stale document %s: %v", doc.DocumentID, err)
			continue
		}
		log.Printf("🧹 [JANITOR] Removed stale pending document %s (%s)", doc.DocumentID, doc.Filename)
	}
}
