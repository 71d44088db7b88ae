package handlers

import (
	"context"
	"net/http"

	"ditto-builder-backend/internal/export"
	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/pkg/httputil"

	"github.com/google/uuid"
)

// WidgetService defines the interface expected from the builder service.
type WidgetService interface {
	CreateWidget(ctx context.Context) (*models.CreateWidgetResponse, error)
	GetWidget(ctx context.Context, id uuid.UUID) (*models.WidgetResponse, error)
	SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.WidgetResponse, error)
	GetArtifact(ctx context.Context, id uuid.UUID) (string, error)
	ClearArtifact(ctx context.Context, id uuid.UUID) error
	ResetSession(ctx context.Context, id uuid.UUID) error
	DeleteWidget(ctx context.Context, id uuid.UUID) error
}

type WidgetHandler struct {
	widgetService WidgetService
}

func NewWidgetHandler(svc WidgetService) *WidgetHandler {
	return &WidgetHandler{widgetService: svc}
}

// HandleCreateWidget handles POST /v1/widgets.
func (h *WidgetHandler) HandleCreateWidget(w http.ResponseWriter, r *http.Request) {
	resp, err := h.widgetService.CreateWidget(r.Context())
	if err != nil {
		respondServiceError(w, err, "Create widget")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp) // 201 Created
}

// HandleGetWidget handles GET /v1/widgets/{widgetID}.
func (h *WidgetHandler) HandleGetWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := h.widgetID(w, r)
	if !ok {
		return
	}
	resp, err := h.widgetService.GetWidget(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Get widget")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleDeleteWidget handles DELETE /v1/widgets/{widgetID}.
func (h *WidgetHandler) HandleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := h.widgetID(w, r)
	if !ok {
		return
	}
	if err := h.widgetService.DeleteWidget(r.Context(), id); err != nil {
		respondServiceError(w, err, "Delete widget")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSendMessage handles POST /v1/widgets/{widgetID}/messages. It blocks until the turn is over.
func (h *WidgetHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.widgetID(w, r)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.widgetService.SendMessage(r.Context(), id, req.Text)
	if err != nil {
		respondServiceError(w, err, "Send message")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleResetSession handles POST /v1/widgets/{widgetID}/session/reset.
func (h *WidgetHandler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.widgetID(w, r)
	if !ok {
		return
	}
	if err := h.widgetService.ResetSession(r.Context(), id); err != nil {
		respondServiceError(w, err, "Reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetArtifact handles GET /v1/widgets/{widgetID}/artifact.
func (h *WidgetHandler) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, html, ok := h.artifact(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.ArtifactResponse{WidgetID: id, HTML: html})
}

// HandleDownloadArtifact handles GET /v1/widgets/{widgetID}/artifact/download.
func (h *WidgetHandler) HandleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	if _, html, ok := h.artifact(w, r); ok {
		export.WriteDownload(w, html)
	}
}

// HandlePreviewArtifact handles GET /v1/widgets/{widgetID}/artifact/preview.
func (h *WidgetHandler) HandlePreviewArtifact(w http.ResponseWriter, r *http.Request) {
	if _, html, ok := h.artifact(w, r); ok {
		export.WritePreview(w, html)
	}
}

// HandleClearArtifact handles DELETE /v1/widgets/{widgetID}/artifact.
func (h *WidgetHandler) HandleClearArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.widgetID(w, r)
	if !ok {
		return
	}
	if err := h.widgetService.ClearArtifact(r.Context(), id); err != nil {
		respondServiceError(w, err, "Clear artifact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeployOptions handles GET /v1/deploy-options.
func (h *WidgetHandler) HandleDeployOptions(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, export.Options())
}

func (h *WidgetHandler) widgetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := widgetIDFromRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid widget ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *WidgetHandler) artifact(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	id, ok := h.widgetID(w, r)
	if !ok {
		return uuid.Nil, "", false
	}
	html, err := h.widgetService.GetArtifact(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Get artifact")
		return uuid.Nil, "", false
	}
	return id, html, true
}
