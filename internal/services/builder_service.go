package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ditto-builder-backend/internal/auth"
	"ditto-builder-backend/internal/builder"
	"ditto-builder-backend/internal/events"
	"ditto-builder-backend/internal/llm"
	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/internal/store"

	"github.com/google/uuid"
)

// BuilderConfig holds the settings BuilderService needs from the application config.
type BuilderConfig struct {
	ChatModel       string
	TurnTimeout     time.Duration
	JWTSecret       string
	TokenExpiration time.Duration
	// IdleTimeout is how long an unused widget stays loaded. Zero uses DefaultIdleTimeout.
	IdleTimeout time.Duration
}

const DefaultIdleTimeout = 30 * time.Minute

// liveWidget is a loaded orchestrator and the last time a request used it.
type liveWidget struct {
	o        *builder.Orchestrator
	lastUsed time.Time
}

// BuilderService runs one orchestrator per widget, persists what it produces and relays its
// progress to stream subscribers.
type BuilderService struct {
	store   store.Store
	backend llm.Backend
	tool    builder.ToolInvoker
	bus     events.Bus
	cfg     BuilderConfig
	now     func() time.Time

	mu      sync.Mutex
	widgets map[uuid.UUID]*liveWidget
}

func NewBuilderService(s store.Store, backend llm.Backend, tool builder.ToolInvoker, bus events.Bus, cfg BuilderConfig) *BuilderService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &BuilderService{
		store:   s,
		backend: backend,
		tool:    tool,
		bus:     bus,
		cfg:     cfg,
		now:     time.Now,
		widgets: make(map[uuid.UUID]*liveWidget),
	}
}

// CreateWidget stores a new widget holding only the greeting and issues its access token.
func (s *BuilderService) CreateWidget(ctx context.Context) (*models.CreateWidgetResponse, error) {
	w := &models.Widget{
		Transcript: []models.Message{{Role: models.RoleModel, Text: builder.Greeting}},
	}
	if err := s.store.CreateWidget(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create widget in store: %w", err)
	}

	token, err := auth.NewWidgetToken(w.ID, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		return nil, ErrCreatingToken
	}
	log.Printf("[BuilderService] Created widget %s", w.ID)

	return &models.CreateWidgetResponse{
		WidgetID:    w.ID,
		AccessToken: token,
		Transcript:  w.Transcript,
	}, nil
}

// GetWidget returns the widget's transcript and state.
func (s *BuilderService) GetWidget(ctx context.Context, id uuid.UUID) (*models.WidgetResponse, error) {
	o, err := s.orchestrator(ctx, id)
	if err != nil {
		return nil, err
	}
	return widgetResponse(id, o), nil
}

// SendMessage runs one turn for the widget and returns the resulting state. Turn failures end up in
// the transcript; only blank input, a busy widget and store errors are returned.
func (s *BuilderService) SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.WidgetResponse, error) {
	o, err := s.orchestrator(ctx, id)
	if err != nil {
		return nil, err
	}

	turnCtx := ctx
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	if err := o.Send(turnCtx, text); err != nil {
		switch {
		case errors.Is(err, builder.ErrBlankInput):
			return nil, fmt.Errorf("%w: text cannot be empty", ErrValidation)
		case errors.Is(err, builder.ErrBusy):
			return nil, ErrBusy
		}
		return nil, err
	}

	// The turn is over even if the client went away; its outcome is still saved.
	persistCtx := context.WithoutCancel(ctx)
	transcript := o.Transcript()
	if err := s.store.SaveTranscript(persistCtx, id, transcript); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.evict(id)
			return nil, err
		}
		log.Printf("ERROR [BuilderService] Failed to save transcript for widget %s: %v", id, err)
		return nil, fmt.Errorf("failed to save transcript: %w", err)
	}
	s.publish(id, models.StreamEvent{Type: "done"})

	return widgetResponse(id, o), nil
}

// GetArtifact returns the last generated document.
func (s *BuilderService) GetArtifact(ctx context.Context, id uuid.UUID) (string, error) {
	o, err := s.orchestrator(ctx, id)
	if err != nil {
		return "", err
	}
	html, ok := o.Artifact()
	if !ok {
		return "", ErrNoArtifact
	}
	return html, nil
}

// ClearArtifact drops the generated document, as closing the preview does.
func (s *BuilderService) ClearArtifact(ctx context.Context, id uuid.UUID) error {
	o, err := s.orchestrator(ctx, id)
	if err != nil {
		return err
	}
	o.ClearArtifact()
	if err := s.store.SaveArtifact(ctx, id, ""); err != nil {
		return fmt.Errorf("failed to clear artifact: %w", err)
	}
	s.publish(id, models.StreamEvent{Type: "artifact"})
	return nil
}

// ResetSession makes the widget's next message open a fresh model session.
func (s *BuilderService) ResetSession(ctx context.Context, id uuid.UUID) error {
	o, err := s.orchestrator(ctx, id)
	if err != nil {
		return err
	}
	if err := o.ResetSession(); err != nil {
		return ErrBusy
	}
	log.Printf("[BuilderService] Reset model session for widget %s", id)
	return nil
}

// DeleteWidget forgets the widget. A widget that is answering cannot be deleted.
func (s *BuilderService) DeleteWidget(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if lw, ok := s.widgets[id]; ok {
		if lw.o.State() != builder.StateIdle {
			s.mu.Unlock()
			return ErrBusy
		}
		delete(s.widgets, id)
	}
	s.mu.Unlock()

	if err := s.store.DeleteWidget(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete widget: %w", err)
	}
	log.Printf("[BuilderService] Deleted widget %s", id)
	return nil
}

// Subscribe streams the widget's events until cancel is called.
func (s *BuilderService) Subscribe(ctx context.Context, id uuid.UUID) (<-chan models.StreamEvent, func(), error) {
	if _, err := s.orchestrator(ctx, id); err != nil {
		return nil, nil, err
	}
	return s.bus.Subscribe(ctx, id)
}

// orchestrator returns the live orchestrator of a widget, restoring it from the store if needed.
// A loaded widget is checked against the store first, so one that expired there is dropped here too.
func (s *BuilderService) orchestrator(ctx context.Context, id uuid.UUID) (*builder.Orchestrator, error) {
	s.mu.Lock()
	lw, ok := s.widgets[id]
	s.mu.Unlock()
	if ok {
		if err := s.store.TouchWidget(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.evict(id)
				return nil, err
			}
			return nil, fmt.Errorf("failed to touch widget in store: %w", err)
		}
		s.mu.Lock()
		lw.lastUsed = s.now()
		s.mu.Unlock()
		return lw.o, nil
	}

	w, err := s.store.GetWidget(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get widget from store: %w", err)
	}

	sessionCfg := builder.SessionConfig(s.tool, w.Transcript)
	if s.cfg.ChatModel != "" {
		sessionCfg.Model = s.cfg.ChatModel
	}
	o := builder.New(builder.Config{
		Session:    llm.NewHandle(s.backend, sessionCfg),
		Tool:       s.tool,
		Transcript: w.Transcript,
		Artifact:   w.Artifact,
		Callbacks:  s.callbacks(id),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have restored the same widget meanwhile.
	if existing, ok := s.widgets[id]; ok {
		existing.lastUsed = s.now()
		return existing.o, nil
	}
	s.widgets[id] = &liveWidget{o: o, lastUsed: s.now()}
	log.Printf("[BuilderService] Restored widget %s with %d messages", id, len(w.Transcript))
	return o, nil
}

// evict unloads a widget unless a turn is running on it.
func (s *BuilderService) evict(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lw, ok := s.widgets[id]; ok && lw.o.State() == builder.StateIdle {
		delete(s.widgets, id)
		log.Printf("[BuilderService] Unloaded widget %s", id)
	}
}

// EvictIdle unloads widgets nobody used for IdleTimeout and returns how many it dropped.
// Their transcripts stay in the store and are restored on the next request.
func (s *BuilderService) EvictIdle() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, lw := range s.widgets {
		if lw.lastUsed.Before(cutoff) && lw.o.State() == builder.StateIdle {
			delete(s.widgets, id)
			n++
		}
	}
	if n > 0 {
		log.Printf("[BuilderService] Unloaded %d idle widgets, %d still loaded", n, len(s.widgets))
	}
	return n
}

// RunEvictor calls EvictIdle every interval until ctx is done.
func (s *BuilderService) RunEvictor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

func (s *BuilderService) callbacks(id uuid.UUID) builder.Callbacks {
	return builder.Callbacks{
		OnMessage: func(index int, msg models.Message) {
			s.publish(id, models.StreamEvent{Type: "message", Index: index, Message: &msg})
		},
		OnState: func(state builder.State) {
			s.publish(id, models.StreamEvent{Type: "state", State: state.String()})
		},
		OnArtifact: func(html string) {
			if err := s.store.SaveArtifact(context.Background(), id, html); err != nil {
				log.Printf("ERROR [BuilderService] Failed to save artifact for widget %s: %v", id, err)
			}
			s.publish(id, models.StreamEvent{Type: "artifact", HTML: html})
		},
	}
}

func (s *BuilderService) publish(id uuid.UUID, ev models.StreamEvent) {
	if err := s.bus.Publish(context.Background(), id, ev); err != nil {
		log.Printf("ERROR [BuilderService] Failed to publish %s event for widget %s: %v", ev.Type, id, err)
	}
}

func widgetResponse(id uuid.UUID, o *builder.Orchestrator) *models.WidgetResponse {
	_, hasArtifact := o.Artifact()
	return &models.WidgetResponse{
		WidgetID:    id,
		State:       o.State().String(),
		Transcript:  o.Transcript(),
		HasArtifact: hasArtifact,
	}
}
