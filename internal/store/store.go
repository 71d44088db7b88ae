package store

import (
	"context"
	"errors"
	"time"

	"ditto-builder-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for widget persistence.
// This allows for mocking in tests and switching between the memory, Postgres and Redis backends.
type Store interface {
	// CreateWidget inserts a new widget. ID, CreatedAt and UpdatedAt are filled in if zero.
	CreateWidget(ctx context.Context, w *models.Widget) error
	GetWidget(ctx context.Context, id uuid.UUID) (*models.Widget, error)
	// TouchWidget reports store.ErrNotFound for a missing widget and otherwise marks it as used,
	// extending its lifetime where the backend expires widgets.
	TouchWidget(ctx context.Context, id uuid.UUID) error

	// SaveTranscript replaces the stored transcript wholesale.
	SaveTranscript(ctx context.Context, id uuid.UUID, transcript []models.Message) error
	// SaveArtifact replaces the stored document. An empty string clears it.
	SaveArtifact(ctx context.Context, id uuid.UUID, html string) error

	DeleteWidget(ctx context.Context, id uuid.UUID) error
}

// PrepareNew fills in the generated fields of a widget about to be created.
func PrepareNew(w *models.Widget, now func() time.Time) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	ts := now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = ts
	}
	w.UpdatedAt = ts
}
