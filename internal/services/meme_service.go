package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"ditto-builder-backend/internal/meme"
	"ditto-builder-backend/internal/models"
)

// maxReferenceBytes bounds the decoded reference image.
const maxReferenceBytes = 8 << 20

var ErrMemeFailed = errors.New("failed to generate meme")

// MemeGenerator is the part of meme.Service the handler path needs.
type MemeGenerator interface {
	Generate(ctx context.Context, req meme.Request) (*meme.Result, error)
}

type MemeService struct {
	generator MemeGenerator
}

func NewMemeService(g MemeGenerator) *MemeService {
	return &MemeService{generator: g}
}

// GenerateMeme validates the request, decodes the optional reference image and runs the generator.
func (s *MemeService) GenerateMeme(ctx context.Context, req models.GenerateMemeRequest) (*models.GenerateMemeResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	}

	var reference *meme.Image
	if req.ReferenceImageBase64 != "" {
		img, err := decodeReference(req.ReferenceImageBase64, req.ReferenceMIMEType)
		if err != nil {
			return nil, err
		}
		reference = img
	}

	res, err := s.generator.Generate(ctx, meme.Request{Prompt: req.Prompt, Reference: reference})
	if err != nil {
		log.Printf("ERROR [MemeService] Generation failed: %v", err)
		if errors.Is(err, meme.ErrEmptyPrompt) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMemeFailed, err)
	}

	return &models.GenerateMemeResponse{
		ImageDataURL: res.Image.DataURL(),
		PostText:     res.PostText,
		ShareURL:     res.ShareURL(),
	}, nil
}

// decodeReference accepts plain base64 or a data URL.
func decodeReference(encoded, mimeType string) (*meme.Image, error) {
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("%w: malformed data URL", ErrValidation)
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: reference image is not valid base64", ErrValidation)
	}
	if len(data) > maxReferenceBytes {
		return nil, fmt.Errorf("%w: reference image exceeds %d bytes", ErrValidation, maxReferenceBytes)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: reference must be an image, got %s", ErrValidation, mimeType)
	}
	return &meme.Image{Data: data, MIMEType: mimeType}, nil
}
