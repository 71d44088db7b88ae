package models

import (
	"time"

	"github.com/google/uuid"
)

// Widget represents one builder widget instance as persisted by the store.
type Widget struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Transcript []Message `db:"transcript" json:"transcript"` // Stored as JSONB
	Artifact   string    `db:"artifact" json:"artifact"`     // Last generated HTML document, empty if none
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// HasArtifact reports whether the widget currently holds a generated document.
func (w *Widget) HasArtifact() bool {
	return w.Artifact != ""
}
