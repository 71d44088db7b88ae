// Package llm defines the narrow surface the builder needs from a hosted model: open a
// conversational session, send a turn, and read the reply as a stream of fragments.
package llm

import (
	"context"
	"iter"

	"ditto-builder-backend/internal/models"
)

// ToolCall is a function invocation requested by the model mid-stream.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// StringArg returns the named argument when it is a non-empty string.
func (c ToolCall) StringArg(name string) (string, bool) {
	v, ok := c.Args[name].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ToolResult is submitted back to the session after a tool call has been serviced.
type ToolResult struct {
	CallID  string
	Name    string
	Payload map[string]any
}

// Fragment is one piece of a streamed reply. Either field may be empty.
type Fragment struct {
	Text      string
	ToolCalls []ToolCall
}

// Stream yields fragments until the reply is complete. A non-nil error ends the stream.
type Stream = iter.Seq2[Fragment, error]

// TurnInput is what the caller sends on a turn: user text, or the result of a tool call.
type TurnInput struct {
	Text       string
	ToolResult *ToolResult
}

// ToolParameter describes one string parameter of a declared tool.
type ToolParameter struct {
	Name        string
	Description string
	Required    bool
}

// ToolDeclaration is the schema of a capability the model may call.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// SessionConfig binds a session to one model configuration.
type SessionConfig struct {
	Model             string
	SystemInstruction string
	Tools             []ToolDeclaration
	// History seeds the session with earlier messages, e.g. after a restart.
	History []models.Message
}

// Session is a live conversation with the model.
type Session interface {
	SendTurn(ctx context.Context, input TurnInput) (Stream, error)
}

// Backend creates sessions against a particular model provider.
type Backend interface {
	OpenSession(ctx context.Context, cfg SessionConfig) (Session, error)
}
