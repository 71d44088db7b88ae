package handlers

import (
	"errors"
	"log"
	"net/http"

	"ditto-builder-backend/internal/services"
	"ditto-builder-backend/internal/store"
	"ditto-builder-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WidgetIDParam is the route parameter naming the widget.
const WidgetIDParam = "widgetID"

// widgetIDFromRequest parses the widget ID from the URL.
func widgetIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, WidgetIDParam))
}

// respondServiceError maps service errors to HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error()) // 400
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Widget not found") // 404
	case errors.Is(err, services.ErrNoArtifact):
		httputil.RespondError(w, http.StatusNotFound, err.Error()) // 404
	case errors.Is(err, services.ErrBusy):
		httputil.RespondError(w, http.StatusConflict, err.Error()) // 409
	case errors.Is(err, services.ErrMemeFailed):
		httputil.RespondError(w, http.StatusBadGateway, "Failed to generate meme. Please try again.") // 502
	default:
		log.Printf("ERROR [Handlers] %s failed: %v", action, err)
		httputil.RespondError(w, http.StatusInternalServerError, action+" failed due to an internal error") // 500
	}
}
