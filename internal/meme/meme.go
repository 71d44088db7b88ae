// Package meme generates a Ditto meme image and drafts a matching social post.
package meme

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
)

const (
	// FallbackPost is used when the text model returns nothing.
	FallbackPost = "LFG! $DITTO is going to the moon! 🚀 #Solana"

	shareBaseURL = "https://twitter.com/intent/tweet"

	character = "the Ditto mascot in a 2D cartoon style: an amorphous light-purple jelly blob with a wavy outline, " +
		"two stubby arms, two small black dot eyes and a simple line mouth"
	style = "Art style: 2D cel-shaded cartoon illustration, clean outlines, vibrant colors. Not a 3D render, not realistic."
)

var (
	ErrEmptyPrompt = errors.New("prompt is required")
	ErrNoImage     = errors.New("no image generated")
)

// Image is raw image bytes with their MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL encodes the image for direct use in an <img> tag.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// Models is the pair of generative calls a meme needs.
type Models interface {
	// GenerateImage returns nil, nil when the model answered without an image.
	GenerateImage(ctx context.Context, prompt string, reference *Image) (*Image, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Request describes one meme.
type Request struct {
	Prompt    string
	Reference *Image // optional
}

// Result is a generated meme.
type Result struct {
	Image    *Image
	PostText string
}

// ShareURL returns a link that opens the post composer prefilled with the post text.
func (r *Result) ShareURL() string {
	return shareBaseURL + "?text=" + url.QueryEscape(r.PostText)
}

// Service runs the image step, then the post step.
type Service struct {
	models Models
}

func NewService(m Models) *Service {
	return &Service{models: m}
}

// Generate produces the image and its post. A failed image step fails the whole request; an
// empty post falls back to FallbackPost.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	img, err := s.models.GenerateImage(ctx, imagePrompt(prompt, req.Reference != nil), req.Reference)
	if err != nil {
		return nil, fmt.Errorf("generating image: %w", err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrNoImage
	}

	post, err := s.models.GenerateText(ctx, postPrompt(prompt))
	if err != nil {
		return nil, fmt.Errorf("drafting post: %w", err)
	}
	post = strings.TrimSpace(post)
	if post == "" {
		log.Printf("WARN [Meme] Text model returned an empty post, using fallback")
		post = FallbackPost
	}

	return &Result{Image: img, PostText: post}, nil
}

func imagePrompt(prompt string, withReference bool) string {
	if withReference {
		return fmt.Sprintf("Generate an image of %s interacting with the character or object in the attached reference image. Scene description: %s. %s", character, prompt, style)
	}
	return fmt.Sprintf("Generate an image of %s doing the following activity: %s. %s", character, prompt, style)
}

func postPrompt(prompt string) string {
	return fmt.Sprintf(`Write a hype tweet for a Solana memecoin represented by the character Ditto.
Context: The image shows Ditto doing: %q.
Style: crypto twitter, high energy, informal, funny.
Max 280 chars.
Hashtags: $DITTO #Solana #Memecoin`, prompt)
}
