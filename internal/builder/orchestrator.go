// Package builder drives the app-builder conversation: it sends prompts to the model session,
// services the market-data tool when the model asks for it, and extracts the generated document
// and follow-up suggestions once a reply is complete.
package builder

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"ditto-builder-backend/internal/extract"
	"ditto-builder-backend/internal/llm"
	"ditto-builder-backend/internal/models"
)

var (
	ErrBlankInput = errors.New("message text is empty")
	ErrBusy       = errors.New("a message is already being processed")
)

// ToolInvoker services the one capability declared to the model.
type ToolInvoker interface {
	Declaration() llm.ToolDeclaration
	Invoke(ctx context.Context, call llm.ToolCall) (*llm.ToolResult, error)
	StatusNote(call llm.ToolCall) string
}

// Callbacks observe an orchestrator. Any of them may be nil.
// They run synchronously on the goroutine calling Send; a Send issued from a callback gets ErrBusy.
type Callbacks struct {
	OnMessage  func(index int, msg models.Message)
	OnArtifact func(html string)
	OnState    func(state State)
}

// Config holds what an Orchestrator is built from.
type Config struct {
	Session *llm.Handle
	Tool    ToolInvoker

	// Transcript restores an earlier conversation. A nil transcript starts with the greeting.
	Transcript []models.Message
	// Artifact restores the last generated document.
	Artifact string

	Callbacks Callbacks
}

// Orchestrator owns one widget's transcript and model session.
// Sends are single-flight: a Send while another is running returns ErrBusy.
type Orchestrator struct {
	session *llm.Handle
	tool    ToolInvoker
	cb      Callbacks

	mu         sync.Mutex
	state      State
	transcript []models.Message
	artifact   string
}

// New creates an idle orchestrator.
func New(cfg Config) *Orchestrator {
	transcript := models.CloneMessages(cfg.Transcript)
	if transcript == nil {
		transcript = []models.Message{{Role: models.RoleModel, Text: Greeting}}
	}
	return &Orchestrator{
		session:    cfg.Session,
		tool:       cfg.Tool,
		cb:         cfg.Callbacks,
		state:      StateIdle,
		transcript: transcript,
		artifact:   cfg.Artifact,
	}
}

// SessionConfig returns the model configuration a builder session is opened with.
func SessionConfig(tool ToolInvoker, history []models.Message) llm.SessionConfig {
	cfg := llm.SessionConfig{
		Model:             ChatModel,
		SystemInstruction: SystemInstruction,
		History:           sessionHistory(history),
	}
	if tool != nil {
		cfg.Tools = []llm.ToolDeclaration{tool.Declaration()}
	}
	return cfg
}

// sessionHistory keeps the part of a restored transcript the model actually took part in: it
// starts at the first user message and leaves out the fixed notices the orchestrator wrote itself.
// A user message the model never answered is dropped, so user turns never sit side by side.
func sessionHistory(transcript []models.Message) []models.Message {
	var kept []models.Message
	for _, m := range transcript {
		if kept == nil && m.Role != models.RoleUser {
			continue
		}
		if m.Role == models.RoleModel && (m.Text == ApologyNotice || m.Text == ToolFailureNotice) {
			continue
		}
		kept = append(kept, m)
	}

	var out []models.Message
	for i, m := range kept {
		if m.Role == models.RoleUser && (i+1 == len(kept) || kept[i+1].Role != models.RoleModel) {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// Send runs one user turn to completion.
//
// Blank text returns ErrBlankInput and changes nothing. Failures of the model stream or the tool
// are reported in the transcript, not returned; Send then returns nil and the orchestrator is
// idle again.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankInput
	}

	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.state = StateSending
	o.mu.Unlock()
	o.notifyState(StateSending)
	defer o.setState(StateIdle)

	o.appendMessage(models.Message{Role: models.RoleUser, Text: text})

	t := &turn{o: o, reply: -1}
	t.run(ctx, text)
	return nil
}

// State returns the current position in the turn loop.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Transcript returns a copy of all messages in display order.
func (o *Orchestrator) Transcript() []models.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return models.CloneMessages(o.transcript)
}

// Artifact returns the last generated document.
func (o *Orchestrator) Artifact() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.artifact, o.artifact != ""
}

// ClearArtifact drops the generated document, e.g. when the preview is closed.
func (o *Orchestrator) ClearArtifact() {
	o.mu.Lock()
	o.artifact = ""
	o.mu.Unlock()
}

// ResetSession discards the model session; the next Send opens a new one.
// Returns ErrBusy while a send is running.
func (o *Orchestrator) ResetSession() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrBusy
	}
	o.session.Reset()
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.notifyState(s)
}

func (o *Orchestrator) notifyState(s State) {
	if o.cb.OnState != nil {
		o.cb.OnState(s)
	}
}

// appendMessage adds msg to the transcript and returns its index.
func (o *Orchestrator) appendMessage(msg models.Message) int {
	o.mu.Lock()
	o.transcript = append(o.transcript, msg)
	idx := len(o.transcript) - 1
	snapshot := o.transcript[idx].Clone()
	o.mu.Unlock()

	if o.cb.OnMessage != nil {
		o.cb.OnMessage(idx, snapshot)
	}
	return idx
}

// updateMessage mutates the message at idx in place.
func (o *Orchestrator) updateMessage(idx int, fn func(m *models.Message)) models.Message {
	o.mu.Lock()
	fn(&o.transcript[idx])
	snapshot := o.transcript[idx].Clone()
	o.mu.Unlock()

	if o.cb.OnMessage != nil {
		o.cb.OnMessage(idx, snapshot)
	}
	return snapshot
}

func (o *Orchestrator) setArtifact(html string) {
	o.mu.Lock()
	o.artifact = html
	o.mu.Unlock()

	if o.cb.OnArtifact != nil {
		o.cb.OnArtifact(html)
	}
}

// turn is the state of one Send across its tool sub-turns.
type turn struct {
	o *Orchestrator

	// reply is the index of the model message, -1 until the first fragment arrives.
	reply int
	// prefix is the display text accumulated by earlier rounds of this turn.
	prefix string
}

func (t *turn) run(ctx context.Context, text string) {
	session, err := t.o.session.Get(ctx)
	if err != nil {
		t.streamFailed(err)
		return
	}

	stream, err := session.SendTurn(ctx, llm.TurnInput{Text: text})
	if err != nil {
		t.streamFailed(err)
		return
	}
	t.o.setState(StateStreaming)

	for {
		buffer, call, err := t.consume(ctx, stream)
		if err != nil {
			t.streamFailed(err)
			return
		}
		if call == nil {
			t.finalize(buffer)
			return
		}

		if t.o.tool == nil {
			log.Printf("ERROR [Orchestrator] Model requested tool %s but none is configured", call.Name)
			t.o.appendMessage(models.Message{Role: models.RoleModel, Text: ToolFailureNotice})
			return
		}

		t.o.setState(StateToolPending)
		note := t.o.tool.StatusNote(*call)
		msg := t.o.updateMessage(t.reply, func(m *models.Message) {
			m.Text += note
		})
		t.prefix = msg.Text

		result, err := t.o.tool.Invoke(ctx, *call)
		if err == nil {
			stream, err = session.SendTurn(ctx, llm.TurnInput{ToolResult: result})
		}
		if err != nil {
			log.Printf("ERROR [Orchestrator] Tool %s failed: %v", call.Name, err)
			t.o.appendMessage(models.Message{Role: models.RoleModel, Text: ToolFailureNotice})
			return
		}
		t.o.setState(StateStreaming)
	}
}

// consume reads one round of the stream into a fresh buffer. Only the first tool call of the
// round is kept.
func (t *turn) consume(ctx context.Context, stream llm.Stream) (string, *llm.ToolCall, error) {
	var buf strings.Builder
	var call *llm.ToolCall

	for frag, err := range stream {
		if err != nil {
			return "", nil, err
		}
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		buf.WriteString(frag.Text)
		if call == nil && len(frag.ToolCalls) > 0 {
			first := frag.ToolCalls[0]
			call = &first
		}
		t.show(buf.String(), call != nil)
	}

	if t.reply < 0 {
		t.show("", call != nil)
	}
	return buf.String(), call, nil
}

// show projects the round buffer onto the model message, creating it on first use.
func (t *turn) show(buffer string, toolUse bool) {
	text := t.prefix + extract.DisplayText(buffer)
	if t.reply < 0 {
		t.reply = t.o.appendMessage(models.Message{Role: models.RoleModel, Text: text, IsToolUse: toolUse})
		return
	}
	t.o.updateMessage(t.reply, func(m *models.Message) {
		m.Text = text
		if toolUse {
			m.IsToolUse = true
		}
	})
}

func (t *turn) finalize(buffer string) {
	if html, ok := extract.ExtractHTML(buffer); ok {
		t.o.setArtifact(html)
	}
	if suggestions := extract.ExtractSuggestions(buffer); len(suggestions) > 0 {
		t.o.updateMessage(t.reply, func(m *models.Message) {
			m.Suggestions = suggestions
		})
	}
}

func (t *turn) streamFailed(err error) {
	log.Printf("ERROR [Orchestrator] Model stream failed: %v", err)
	t.o.appendMessage(models.Message{Role: models.RoleModel, Text: ApologyNotice})
}
