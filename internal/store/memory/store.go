// Package memory keeps widgets in process memory. It is the default backend for local runs and tests.
package memory

import (
	"context"
	"log"
	"sync"
	"time"

	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/internal/store"

	"github.com/google/uuid"
)

// Compile-time check to ensure MemoryStore implements store.Store
var _ store.Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu      sync.RWMutex
	widgets map[uuid.UUID]*models.Widget
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		widgets: make(map[uuid.UUID]*models.Widget),
		now:     time.Now,
	}
}

func (s *MemoryStore) CreateWidget(_ context.Context, w *models.Widget) error {
	store.PrepareNew(w, s.now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgets[w.ID] = cloneWidget(w)
	log.Printf("[MemoryStore] Created widget %s", w.ID)
	return nil
}

func (s *MemoryStore) GetWidget(_ context.Context, id uuid.UUID) (*models.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneWidget(w), nil
}

func (s *MemoryStore) TouchWidget(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(*models.Widget) {})
}

func (s *MemoryStore) SaveTranscript(_ context.Context, id uuid.UUID, transcript []models.Message) error {
	return s.update(id, func(w *models.Widget) {
		w.Transcript = models.CloneMessages(transcript)
	})
}

func (s *MemoryStore) SaveArtifact(_ context.Context, id uuid.UUID, html string) error {
	return s.update(id, func(w *models.Widget) {
		w.Artifact = html
	})
}

func (s *MemoryStore) DeleteWidget(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.widgets[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.widgets, id)
	return nil
}

func (s *MemoryStore) update(id uuid.UUID, fn func(w *models.Widget)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.widgets[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(w)
	w.UpdatedAt = s.now().UTC()
	return nil
}

func cloneWidget(w *models.Widget) *models.Widget {
	c := *w
	c.Transcript = models.CloneMessages(w.Transcript)
	return &c
}
