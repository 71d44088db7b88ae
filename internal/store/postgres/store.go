package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS widgets (
    id          UUID PRIMARY KEY,
    transcript  JSONB NOT NULL DEFAULT '[]'::jsonb,
    artifact    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the widgets table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("database error creating widgets table: %w", err)
	}
	log.Println("[PostgresStore] Schema is up to date")
	return nil
}

// CreateWidget inserts a new widget record into the database.
func (s *PostgresStore) CreateWidget(ctx context.Context, w *models.Widget) error {
	store.PrepareNew(w, time.Now)
	log.Printf("[PostgresStore] CreateWidget called for: %s", w.ID)

	transcript, err := marshalTranscript(w.Transcript)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO widgets (id, transcript, artifact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = s.db.Exec(ctx, query, w.ID, transcript, w.Artifact, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Printf("ERROR [PostgresStore] CreateWidget: PostgreSQL error executing insert for widget %s: Code=%s, Message=%s, Detail=%s", w.ID, pgErr.Code, pgErr.Message, pgErr.Detail)
		} else {
			log.Printf("ERROR [PostgresStore] CreateWidget: Failed to execute insert for widget %s: %v", w.ID, err)
		}
		return fmt.Errorf("database error creating widget: %w", err)
	}
	return nil
}

// GetWidget retrieves a widget by ID.
// Returns store.ErrNotFound if the widget does not exist.
func (s *PostgresStore) GetWidget(ctx context.Context, id uuid.UUID) (*models.Widget, error) {
	query := `
		SELECT id, transcript, artifact, created_at, updated_at
		FROM widgets
		WHERE id = $1`

	w := &models.Widget{}
	var transcript []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&transcript,
		&w.Artifact,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetWidget: Failed to query/scan widget %s: %v", id, err)
		return nil, fmt.Errorf("database error fetching widget: %w", err)
	}

	if err := json.Unmarshal(transcript, &w.Transcript); err != nil {
		log.Printf("ERROR [PostgresStore] GetWidget: Failed to unmarshal transcript for widget %s: %v", id, err)
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return w, nil
}

// TouchWidget bumps updated_at; a missing row is store.ErrNotFound.
func (s *PostgresStore) TouchWidget(ctx context.Context, id uuid.UUID) error {
	return s.execUpdate(ctx, "TouchWidget", `UPDATE widgets SET updated_at = NOW() WHERE id = $1`, id)
}

// SaveTranscript replaces the transcript JSONB of a widget.
func (s *PostgresStore) SaveTranscript(ctx context.Context, id uuid.UUID, transcript []models.Message) error {
	data, err := marshalTranscript(transcript)
	if err != nil {
		return err
	}
	return s.execUpdate(ctx, "SaveTranscript", `
		UPDATE widgets SET transcript = $2, updated_at = NOW()
		WHERE id = $1`, id, data)
}

// SaveArtifact replaces the generated document of a widget.
func (s *PostgresStore) SaveArtifact(ctx context.Context, id uuid.UUID, html string) error {
	return s.execUpdate(ctx, "SaveArtifact", `
		UPDATE widgets SET artifact = $2, updated_at = NOW()
		WHERE id = $1`, id, html)
}

// DeleteWidget removes a widget.
func (s *PostgresStore) DeleteWidget(ctx context.Context, id uuid.UUID) error {
	return s.execUpdate(ctx, "DeleteWidget", `DELETE FROM widgets WHERE id = $1`, id)
}

func (s *PostgresStore) execUpdate(ctx context.Context, op, query string, id uuid.UUID, args ...any) error {
	tag, err := s.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		log.Printf("ERROR [PostgresStore] %s: Failed for widget %s: %v", op, id, err)
		return fmt.Errorf("database error in %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func marshalTranscript(transcript []models.Message) ([]byte, error) {
	if transcript == nil {
		transcript = []models.Message{}
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return data, nil
}
