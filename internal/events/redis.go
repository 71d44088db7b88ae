package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"ditto-builder-backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compile-time check to ensure RedisBus implements Bus
var _ Bus = (*RedisBus)(nil)

const channelPrefix = "widget-events:"

// RedisBus relays events through Redis pub/sub so a client connected to one server instance sees
// turns that run on another.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func channel(widgetID uuid.UUID) string {
	return channelPrefix + widgetID.String()
}

func (b *RedisBus) Publish(ctx context.Context, widgetID uuid.UUID, ev models.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channel(widgetID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, widgetID uuid.UUID) (<-chan models.StreamEvent, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, channel(widgetID))
	// Wait for the subscription to be confirmed so no event published afterwards is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan models.StreamEvent, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev models.StreamEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("ERROR [EventBus] Failed to unmarshal event: %v", err)
					continue
				}
				select {
				case out <- ev:
				default:
					log.Printf("WARN [EventBus] Dropping %s event for slow subscriber of widget %s", ev.Type, widgetID)
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return out, cancel, nil
}
