package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/internal/services"
	"ditto-builder-backend/pkg/httputil"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// maxMessageSize caps an incoming frame; frames carry a prompt only.
	maxMessageSize = 64 << 10
)

// WidgetStreamer defines the interface expected from the builder service by the stream endpoint.
type WidgetStreamer interface {
	Subscribe(ctx context.Context, id uuid.UUID) (<-chan models.StreamEvent, func(), error)
	SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.WidgetResponse, error)
}

// StreamHandler serves the live WebSocket feed of a widget. Clients send {"text": ...} frames and
// receive message, state, artifact, done and error events.
type StreamHandler struct {
	streamer       WidgetStreamer
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

func NewStreamHandler(streamer WidgetStreamer, allowedOrigins []string) *StreamHandler {
	origins := make(map[string]bool)
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h := &StreamHandler{streamer: streamer, allowedOrigins: origins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // allow non-browser clients
	}
	return h.allowedOrigins[origin]
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleStream handles GET /v1/widgets/{widgetID}/stream.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id, err := widgetIDFromRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid widget ID")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe, err := h.streamer.Subscribe(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Subscribe")
		return
	}
	defer unsubscribe()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer raw.Close()
	raw.SetReadLimit(maxMessageSize)
	conn := &wsConn{conn: raw}
	log.Printf("[Stream] Client connected to widget %s", id)

	// Forward events from the bus to the socket and keep the connection alive.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.writeJSON(ev); err != nil {
					log.Printf("Failed to write to WebSocket: %v", err)
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Incoming frames are turns; they run one at a time on this goroutine.
	for {
		_, message, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket closed unexpectedly: %v", err)
			}
			return
		}

		var incoming models.StreamRequest
		if err := json.Unmarshal(message, &incoming); err != nil {
			conn.writeJSON(models.StreamEvent{Type: "error", Error: "Invalid message format. Send JSON with a 'text' field."})
			continue
		}

		if _, err := h.streamer.SendMessage(ctx, id, incoming.Text); err != nil {
			conn.writeJSON(models.StreamEvent{Type: "error", Error: streamErrorMessage(err)})
		}
		raw.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrBusy):
		return err.Error()
	default:
		log.Printf("ERROR [Stream] Send failed: %v", err)
		return "Failed to process message"
	}
}
