// Package events fans widget stream events out to connected WebSocket clients.
package events

import (
	"context"
	"log"
	"sync"

	"ditto-builder-backend/internal/models"

	"github.com/google/uuid"
)

// subscriberBuffer is how many events a slow client may lag behind before events are dropped.
const subscriberBuffer = 64

// Bus delivers events published for a widget to every current subscriber of that widget.
type Bus interface {
	Publish(ctx context.Context, widgetID uuid.UUID, ev models.StreamEvent) error
	// Subscribe returns a channel of events and a function that ends the subscription and closes it.
	Subscribe(ctx context.Context, widgetID uuid.UUID) (<-chan models.StreamEvent, func(), error)
}

// Compile-time check to ensure LocalBus implements Bus
var _ Bus = (*LocalBus)(nil)

// LocalBus is an in-process Bus.
type LocalBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan models.StreamEvent]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[uuid.UUID]map[chan models.StreamEvent]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, widgetID uuid.UUID, ev models.StreamEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[widgetID] {
		select {
		case ch <- ev:
		default:
			log.Printf("WARN [EventBus] Dropping %s event for slow subscriber of widget %s", ev.Type, widgetID)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, widgetID uuid.UUID) (<-chan models.StreamEvent, func(), error) {
	ch := make(chan models.StreamEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[widgetID] == nil {
		b.subs[widgetID] = make(map[chan models.StreamEvent]struct{})
	}
	b.subs[widgetID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[widgetID], ch)
			if len(b.subs[widgetID]) == 0 {
				delete(b.subs, widgetID)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
