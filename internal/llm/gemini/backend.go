// Package gemini implements the llm.Backend interface and the meme generator's model calls on top
// of the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ditto-builder-backend/internal/llm"
	"ditto-builder-backend/internal/models"

	"google.golang.org/genai"
)

// Compile-time check to ensure Backend implements llm.Backend
var _ llm.Backend = (*Backend)(nil)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini API key is not set")

// Backend talks to the Gemini API.
type Backend struct {
	client *genai.Client
}

// NewBackend creates a Gemini client for the given API key.
func NewBackend(ctx context.Context, apiKey string) (*Backend, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Backend{client: client}, nil
}

// OpenSession creates a chat bound to the model, tools and system instruction in cfg.
func (b *Backend) OpenSession(ctx context.Context, cfg llm.SessionConfig) (llm.Session, error) {
	genCfg := &genai.GenerateContentConfig{
		Tools: toolsFromDeclarations(cfg.Tools),
	}
	if cfg.SystemInstruction != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}

	chat, err := b.client.Chats.Create(ctx, cfg.Model, genCfg, historyContents(cfg.History))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat for model %s: %w", cfg.Model, err)
	}
	log.Printf("[Gemini] Opened chat session (model=%s, tools=%d, history=%d)", cfg.Model, len(cfg.Tools), len(cfg.History))
	return &session{chat: chat}, nil
}

type session struct {
	chat *genai.Chat
}

// SendTurn sends user text or a function response and adapts the SDK stream to llm fragments.
func (s *session) SendTurn(ctx context.Context, input llm.TurnInput) (llm.Stream, error) {
	var part genai.Part
	switch {
	case input.ToolResult != nil:
		part = genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       input.ToolResult.CallID,
			Name:     input.ToolResult.Name,
			Response: input.ToolResult.Payload,
		}}
	case input.Text != "":
		part = genai.Part{Text: input.Text}
	default:
		return nil, errors.New("turn input has neither text nor tool result")
	}

	responses := s.chat.SendMessageStream(ctx, part)
	return func(yield func(llm.Fragment, error) bool) {
		for resp, err := range responses {
			if err != nil {
				yield(llm.Fragment{}, err)
				return
			}
			if !yield(fragmentFromResponse(resp), nil) {
				return
			}
		}
	}, nil
}

func fragmentFromResponse(resp *genai.GenerateContentResponse) llm.Fragment {
	if resp == nil {
		return llm.Fragment{}
	}
	frag := llm.Fragment{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		if fc == nil {
			continue
		}
		frag.ToolCalls = append(frag.ToolCalls, llm.ToolCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}
	return frag
}

func toolsFromDeclarations(decls []llm.ToolDeclaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}
	fns := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(d.Parameters)),
		}
		for _, p := range d.Parameters {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}

func historyContents(history []models.Message) []*genai.Content {
	var contents []*genai.Content
	for _, m := range history {
		if m.Text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}
