package auth

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const WidgetIDKey contextKey = "widgetID"

// WithWidgetID returns a copy of ctx carrying the authenticated widget ID.
func WithWidgetID(ctx context.Context, widgetID uuid.UUID) context.Context {
	return context.WithValue(ctx, WidgetIDKey, widgetID)
}

// GetWidgetIDFromContext retrieves the authenticated widget ID from the request context.
// Returns the ID and true if found, otherwise uuid.Nil and false.
func GetWidgetIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	widgetID, ok := ctx.Value(WidgetIDKey).(uuid.UUID)
	return widgetID, ok
}
