// Package redis keeps widgets as JSON values with a sliding TTL.
package redis

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
	"github.com/redis/go-redis/v9"
)

// Compile-time check to ensure RedisStore implements store.Store
var _ store.Store = (*RedisStore)(nil)

const (
	// DefaultTTL is how long an untouched widget survives.
	DefaultTTL = 24 * time.Hour

	widgetPrefix = "widget:"
)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a store whose widgets expire ttl after their last write.
// A non-positive ttl uses DefaultTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(id uuid.UUID) string {
	return widgetPrefix + id.String()
}

func (s *RedisStore) CreateWidget(ctx context.Context, w *models.Widget) error {
	store.PrepareNew(w, time.Now)
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal widget: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, key(w.ID), data, s.ttl).Result()
	if err != nil {
		log.Printf("ERROR [RedisStore] CreateWidget: Failed for widget %s: %v", w.ID, err)
		return fmt.Errorf("failed to save widget: %w", err)
	}
	if !ok {
		return fmt.Errorf("widget %s already exists", w.ID)
	}
	return nil
}

func (s *RedisStore) GetWidget(ctx context.Context, id uuid.UUID) (*models.Widget, error) {
	return s.load(ctx, s.rdb, id)
}

// TouchWidget restarts the widget's TTL.
func (s *RedisStore) TouchWidget(ctx context.Context, id uuid.UUID) error {
	ok, err := s.rdb.Expire(ctx, key(id), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to touch widget: %w", err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *RedisStore) SaveTranscript(ctx context.Context, id uuid.UUID, transcript []models.Message) error {
	return s.update(ctx, id, func(w *models.Widget) {
		w.Transcript = transcript
	})
}

func (s *RedisStore) SaveArtifact(ctx context.Context, id uuid.UUID, html string) error {
	return s.update(ctx, id, func(w *models.Widget) {
		w.Artifact = html
	})
}

func (s *RedisStore) DeleteWidget(ctx context.Context, id uuid.UUID) error {
	n, err := s.rdb.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete widget: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, id uuid.UUID) (*models.Widget, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load widget: %w", err)
	}
	var w models.Widget
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal widget: %w", err)
	}
	return &w, nil
}

// update is an optimistic read-modify-write; the transaction fails if the key changed meanwhile.
func (s *RedisStore) update(ctx context.Context, id uuid.UUID, fn func(w *models.Widget)) error {
	k := key(id)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		w, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(w)
		w.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("failed to marshal widget: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		return err
	}, k)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("ERROR [RedisStore] Update of widget %s failed: %v", id, err)
	}
	return err
}
