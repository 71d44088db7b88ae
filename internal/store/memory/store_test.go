package memory

import (
	"context"
	"testing"
	"time"

	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	clock := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestCreateAndGetWidget(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	w := &models.Widget{Transcript: []models.Message{{Role: models.RoleModel, Text: "hi"}}}
	require.NoError(t, s.CreateWidget(ctx, w))
	assert.NotEqual(t, uuid.Nil, w.ID)
	assert.False(t, w.CreatedAt.IsZero())

	got, err := s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Transcript, got.Transcript)
	assert.False(t, got.HasArtifact())

	// Returned widgets are copies.
	got.Transcript[0].Text = "mutated"
	again, err := s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Transcript[0].Text)
}

func TestGetWidgetNotFound(t *testing.T) {
	_, err := newTestStore().GetWidget(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveTranscriptAndArtifact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	w := &models.Widget{}
	require.NoError(t, s.CreateWidget(ctx, w))

	transcript := []models.Message{
		{Role: models.RoleModel, Text: "hi"},
		{Role: models.RoleUser, Text: "build"},
		{Role: models.RoleModel, Text: "done", Suggestions: []string{"a"}},
	}
	require.NoError(t, s.SaveTranscript(ctx, w.ID, transcript))
	require.NoError(t, s.SaveArtifact(ctx, w.ID, "<p>hi</p>"))

	got, err := s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, transcript, got.Transcript)
	assert.Equal(t, "<p>hi</p>", got.Artifact)
	assert.True(t, got.UpdatedAt.After(w.UpdatedAt))

	require.NoError(t, s.SaveArtifact(ctx, w.ID, ""))
	got, err = s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, got.HasArtifact())
}

func TestSaveUnknownWidget(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	assert.ErrorIs(t, s.SaveTranscript(ctx, uuid.New(), nil), store.ErrNotFound)
	assert.ErrorIs(t, s.SaveArtifact(ctx, uuid.New(), "x"), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteWidget(ctx, uuid.New()), store.ErrNotFound)
	assert.ErrorIs(t, s.TouchWidget(ctx, uuid.New()), store.ErrNotFound)
}

func TestTouchWidget(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	w := &models.Widget{}
	require.NoError(t, s.CreateWidget(ctx, w))

	require.NoError(t, s.TouchWidget(ctx, w.ID))
	got, err := s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(w.UpdatedAt))
}

func TestDeleteWidget(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	w := &models.Widget{}
	require.NoError(t, s.CreateWidget(ctx, w))

	require.NoError(t, s.DeleteWidget(ctx, w.ID))
	_, err := s.GetWidget(ctx, w.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
