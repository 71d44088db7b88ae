package llm

import (
	"context"
	"fmt"
	"sync"
)

// Handle owns the lifecycle of one Session. The session is opened on the first Get and reused
// until Reset. A failed open is not remembered, so the next Get tries again.
type Handle struct {
	backend Backend
	cfg     SessionConfig

	mu      sync.Mutex
	session Session
}

// NewHandle creates a handle; no session is opened yet.
func NewHandle(backend Backend, cfg SessionConfig) *Handle {
	return &Handle{backend: backend, cfg: cfg}
}

// Get returns the session, opening it if needed.
func (h *Handle) Get(ctx context.Context) (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session != nil {
		return h.session, nil
	}
	s, err := h.backend.OpenSession(ctx, h.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open model session: %w", err)
	}
	h.session = s
	return s, nil
}

// Opened reports whether a session currently exists.
func (h *Handle) Opened() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session != nil
}

// Reset drops the current session along with any restored history. The next Get opens a fresh
// conversation.
func (h *Handle) Reset() {
	h.mu.Lock()
	h.session = nil
	h.cfg.History = nil
	h.mu.Unlock()
}
