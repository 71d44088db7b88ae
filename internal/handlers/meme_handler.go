package handlers

import (
	"context"
	"net/http"

	"ditto-builder-backend/internal/models"
	"ditto-builder-backend/pkg/httputil"
)

// MemeService defines the interface expected from the meme service.
type MemeService interface {
	GenerateMeme(ctx context.Context, req models.GenerateMemeRequest) (*models.GenerateMemeResponse, error)
}

type MemeHandler struct {
	memeService MemeService
}

func NewMemeHandler(svc MemeService) *MemeHandler {
	return &MemeHandler{memeService: svc}
}

// HandleGenerateMeme handles POST /v1/memes.
func (h *MemeHandler) HandleGenerateMeme(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateMemeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.memeService.GenerateMeme(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Generate meme")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
