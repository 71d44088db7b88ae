package gemini

import (
	"context"
	"fmt"

	"ditto-builder-backend/internal/meme"

	"google.golang.org/genai"
)

// Compile-time check to ensure MediaModels implements meme.Models
var _ meme.Models = (*MediaModels)(nil)

// MediaModels serves the meme generator: one image model and one text model.
type MediaModels struct {
	backend    *Backend
	imageModel string
	textModel  string
}

// NewMediaModels binds the backend's client to the image and text model identifiers.
func NewMediaModels(b *Backend, imageModel, textModel string) *MediaModels {
	return &MediaModels{backend: b, imageModel: imageModel, textModel: textModel}
}

// GenerateImage asks the image model for a picture, optionally conditioned on a reference image.
// It returns the first inline-data part of the first candidate, or nil if there is none.
func (m *MediaModels) GenerateImage(ctx context.Context, prompt string, reference *meme.Image) (*meme.Image, error) {
	var parts []*genai.Part
	if reference != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			Data:     reference.Data,
			MIMEType: reference.MIMEType,
		}})
	}
	parts = append(parts, &genai.Part{Text: prompt})

	contents := []*genai.Content{{Role: string(genai.RoleUser), Parts: parts}}
	resp, err := m.backend.client.Models.GenerateContent(ctx, m.imageModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("image generation with %s failed: %w", m.imageModel, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &meme.Image{Data: part.InlineData.Data, MIMEType: mimeType}, nil
		}
	}
	return nil, nil
}

// GenerateText returns the text model's reply to a single prompt.
func (m *MediaModels) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := m.backend.client.Models.GenerateContent(ctx, m.textModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("text generation with %s failed: %w", m.textModel, err)
	}
	return resp.Text(), nil
}
