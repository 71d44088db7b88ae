package builder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ditto-builder-backend/internal/extract"
	"ditto-builder-backend/internal/llm"
	"ditto-builder-backend/internal/market"
	"ditto-builder-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// round scripts one streamed reply.
type round struct {
	fragments []llm.Fragment
	err       error // yielded after the fragments
	openErr   error // returned by SendTurn itself
}

type fakeBackend struct {
	rounds  []round
	inputs  []llm.TurnInput
	opens   int
	openErr error
	cfg     llm.SessionConfig
}

func (b *fakeBackend) OpenSession(_ context.Context, cfg llm.SessionConfig) (llm.Session, error) {
	b.opens++
	b.cfg = cfg
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b, nil
}

func (b *fakeBackend) SendTurn(_ context.Context, input llm.TurnInput) (llm.Stream, error) {
	b.inputs = append(b.inputs, input)
	if len(b.rounds) == 0 {
		return nil, errors.New("no scripted round left")
	}
	r := b.rounds[0]
	b.rounds = b.rounds[1:]
	if r.openErr != nil {
		return nil, r.openErr
	}
	return func(yield func(llm.Fragment, error) bool) {
		for _, f := range r.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if r.err != nil {
			yield(llm.Fragment{}, r.err)
		}
	}, nil
}

type fetchFunc func(ctx context.Context, address string) (map[string]any, error)

func (f fetchFunc) FetchToken(ctx context.Context, address string) (map[string]any, error) {
	return f(ctx, address)
}

func text(s string) llm.Fragment { return llm.Fragment{Text: s} }

func toolCall(id, address string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: market.ToolName, Args: map[string]any{market.AddressArg: address}}
}

type recorder struct {
	updates   []models.Message
	artifacts []string
	states    []State
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMessage:  func(_ int, m models.Message) { r.updates = append(r.updates, m) },
		OnArtifact: func(html string) { r.artifacts = append(r.artifacts, html) },
		OnState:    func(s State) { r.states = append(r.states, s) },
	}
}

func newOrchestrator(backend *fakeBackend, fetch fetchFunc, rec *recorder, artifact string) *Orchestrator {
	tool := market.NewTool(fetch)
	cfg := Config{
		Session:  llm.NewHandle(backend, SessionConfig(tool, nil)),
		Tool:     tool,
		Artifact: artifact,
	}
	if rec != nil {
		cfg.Callbacks = rec.callbacks()
	}
	return New(cfg)
}

func noFetch(t *testing.T) fetchFunc {
	return func(context.Context, string) (map[string]any, error) {
		t.Fatal("tool should not be invoked")
		return nil, nil
	}
}

func TestNewStartsWithGreeting(t *testing.T) {
	o := newOrchestrator(&fakeBackend{}, nil, nil, "")

	assert.Equal(t, []models.Message{{Role: models.RoleModel, Text: Greeting}}, o.Transcript())
	assert.Equal(t, StateIdle, o.State())
	_, ok := o.Artifact()
	assert.False(t, ok)
}

func TestSendRejectsBlankInput(t *testing.T) {
	backend := &fakeBackend{}
	o := newOrchestrator(backend, noFetch(t), nil, "")

	assert.ErrorIs(t, o.Send(context.Background(), "  \n\t"), ErrBlankInput)
	assert.Len(t, o.Transcript(), 1)
	assert.Zero(t, backend.opens, "session must not be opened for blank input")
}

func TestSendExtractsArtifactAndSuggestions(t *testing.T) {
	backend := &fakeBackend{rounds: []round{{fragments: []llm.Fragment{
		text("Here is your timer:\n```html\n<!DOCTYPE html><html></html>\n```\n"),
		text(`<<<SUGGESTIONS>>>["Add sound", "Dark mode", "Lap times", "Share"]<<<SUGGESTIONS>>>`),
	}}}}
	rec := &recorder{}
	o := newOrchestrator(backend, noFetch(t), rec, "")

	require.NoError(t, o.Send(context.Background(), "build a timer"))

	transcript := o.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, models.Message{Role: models.RoleUser, Text: "build a timer"}, transcript[1])

	reply := transcript[2]
	assert.Equal(t, models.RoleModel, reply.Role)
	assert.Equal(t, "Here is your timer:\n```html\n<!DOCTYPE html><html></html>\n```\n", reply.Text)
	assert.Equal(t, []string{"Add sound", "Dark mode", "Lap times"}, reply.Suggestions)
	assert.False(t, reply.IsToolUse)

	html, ok := o.Artifact()
	require.True(t, ok)
	assert.Equal(t, "<!DOCTYPE html><html></html>", html)
	assert.Equal(t, []string{"<!DOCTYPE html><html></html>"}, rec.artifacts)

	require.Len(t, backend.inputs, 1)
	assert.Equal(t, "build a timer", backend.inputs[0].Text)
	assert.Equal(t, ChatModel, backend.cfg.Model)
	assert.Equal(t, SystemInstruction, backend.cfg.SystemInstruction)
	require.Len(t, backend.cfg.Tools, 1)
	assert.Equal(t, market.ToolName, backend.cfg.Tools[0].Name)
	assert.Equal(t, StateIdle, o.State())
}

func TestDisplayTextNeverShowsSuggestionsPayload(t *testing.T) {
	backend := &fakeBackend{rounds: []round{{fragments: []llm.Fragment{
		text("All done. <<<SUGG"),
		text(`ESTIONS>>>["A", `),
		text(`"B"]<<<SUGGESTIONS>>>`),
	}}}}
	rec := &recorder{}
	o := newOrchestrator(backend, noFetch(t), rec, "")

	require.NoError(t, o.Send(context.Background(), "hi"))

	require.NotEmpty(t, rec.updates)
	for _, m := range rec.updates {
		assert.NotContains(t, m.Text, extract.SuggestionsDelimiter)
		assert.NotContains(t, m.Text, `"A"`)
	}
	transcript := o.Transcript()
	assert.Equal(t, "All done. ", transcript[len(transcript)-1].Text)
	assert.Equal(t, []string{"A", "B"}, transcript[len(transcript)-1].Suggestions)
}

func TestSendServicesToolCall(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{
			text("Let me check that token."),
			{ToolCalls: []llm.ToolCall{toolCall("call-1", "0xabc"), toolCall("call-2", "0xdef")}},
			{ToolCalls: []llm.ToolCall{toolCall("call-3", "0x999")}},
		}},
		{fragments: []llm.Fragment{
			text(" Price is $1.\n```html\n<DOC>\n```"),
			text(`<<<SUGGESTIONS>>>["Add a chart"]<<<SUGGESTIONS>>>`),
		}},
	}}
	var fetched []string
	fetch := func(_ context.Context, address string) (map[string]any, error) {
		fetched = append(fetched, address)
		return map[string]any{"pairs": []any{map[string]any{"priceUsd": "1"}}}, nil
	}
	rec := &recorder{}
	o := newOrchestrator(backend, fetch, rec, "")

	require.NoError(t, o.Send(context.Background(), "what is 0xabc worth?"))

	assert.Equal(t, []string{"0xabc"}, fetched, "only the first tool call is serviced")

	require.Len(t, backend.inputs, 2)
	result := backend.inputs[1].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "call-1", result.CallID)
	assert.Equal(t, market.ToolName, result.Name)
	assert.Equal(t, map[string]any{"result": map[string]any{"pairs": []any{map[string]any{"priceUsd": "1"}}}}, result.Payload)

	transcript := o.Transcript()
	require.Len(t, transcript, 3, "one user and one model message per send")
	reply := transcript[2]
	assert.Equal(t, "Let me check that token.\n\n*Scanning DexScreener for 0xabc...* Price is $1.\n```html\n<DOC>\n```", reply.Text)
	assert.True(t, reply.IsToolUse)
	assert.Equal(t, []string{"Add a chart"}, reply.Suggestions)

	html, ok := o.Artifact()
	require.True(t, ok)
	assert.Equal(t, "<DOC>", html)

	assert.Equal(t, []State{StateSending, StateStreaming, StateToolPending, StateStreaming, StateIdle}, rec.states)
}

func TestSendToolFailure(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{
			{Text: "Checking", ToolCalls: []llm.ToolCall{toolCall("call-1", "0xabc")}},
			text(`<<<SUGGESTIONS>>>["never"]<<<SUGGESTIONS>>>`),
		}},
	}}
	fetch := func(context.Context, string) (map[string]any, error) {
		return nil, errors.New("connection refused")
	}
	rec := &recorder{}
	o := newOrchestrator(backend, fetch, rec, "<OLD/>")

	require.NoError(t, o.Send(context.Background(), "price of 0xabc"))

	transcript := o.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, "Checking\n\n*Scanning DexScreener for 0xabc...*", transcript[2].Text)
	assert.True(t, transcript[2].IsToolUse)
	assert.Equal(t, models.Message{Role: models.RoleModel, Text: ToolFailureNotice}, transcript[3])
	for _, m := range transcript {
		assert.Empty(t, m.Suggestions)
	}

	html, _ := o.Artifact()
	assert.Equal(t, "<OLD/>", html)
	assert.Empty(t, rec.artifacts)
	assert.Len(t, backend.inputs, 1, "no resubmission after a failed lookup")
	assert.Equal(t, StateIdle, o.State())
}

func TestSendToolMissingAddress(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{{ToolCalls: []llm.ToolCall{{ID: "c", Name: market.ToolName, Args: map[string]any{}}}}}},
	}}
	o := newOrchestrator(backend, noFetch(t), nil, "")

	require.NoError(t, o.Send(context.Background(), "price?"))

	transcript := o.Transcript()
	assert.Equal(t, ToolFailureNotice, transcript[len(transcript)-1].Text)
}

func TestSendResubmissionFailureCountsAsToolFailure(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{{ToolCalls: []llm.ToolCall{toolCall("c", "0xabc")}}}},
		{openErr: errors.New("503")},
	}}
	fetch := func(context.Context, string) (map[string]any, error) { return map[string]any{}, nil }
	o := newOrchestrator(backend, fetch, nil, "")

	require.NoError(t, o.Send(context.Background(), "price?"))

	transcript := o.Transcript()
	assert.Equal(t, ToolFailureNotice, transcript[len(transcript)-1].Text)
}

func TestSendStreamErrorAppendsApology(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{text("Partial ```html\n<p>")}, err: errors.New("stream reset")},
	}}
	o := newOrchestrator(backend, noFetch(t), nil, "<OLD/>")

	require.NoError(t, o.Send(context.Background(), "build"))

	transcript := o.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, "Partial ```html\n<p>", transcript[2].Text)
	assert.Equal(t, models.Message{Role: models.RoleModel, Text: ApologyNotice}, transcript[3])
	html, _ := o.Artifact()
	assert.Equal(t, "<OLD/>", html)
	assert.Equal(t, StateIdle, o.State())
}

func TestSendOpenFailureAppendsOnlyApology(t *testing.T) {
	backend := &fakeBackend{openErr: errors.New("invalid api key")}
	o := newOrchestrator(backend, noFetch(t), nil, "")

	require.NoError(t, o.Send(context.Background(), "build"))

	transcript := o.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, models.RoleUser, transcript[1].Role)
	assert.Equal(t, ApologyNotice, transcript[2].Text)

	// The failed open is not cached; the next send tries again.
	backend.openErr = nil
	backend.rounds = []round{{fragments: []llm.Fragment{text("ok")}}}
	require.NoError(t, o.Send(context.Background(), "again"))
	assert.Equal(t, 2, backend.opens)
	assert.Equal(t, "ok", o.Transcript()[4].Text)
}

func TestSendWithoutHTMLKeepsPreviousArtifact(t *testing.T) {
	backend := &fakeBackend{rounds: []round{{fragments: []llm.Fragment{text("Sure, what colour?")}}}}
	rec := &recorder{}
	o := newOrchestrator(backend, noFetch(t), rec, "<OLD/>")

	require.NoError(t, o.Send(context.Background(), "make it pretty"))

	html, ok := o.Artifact()
	assert.True(t, ok)
	assert.Equal(t, "<OLD/>", html)
	assert.Empty(t, rec.artifacts)
	assert.Nil(t, o.Transcript()[2].Suggestions)
}

func TestSendEmptyStreamStillAppendsReply(t *testing.T) {
	backend := &fakeBackend{rounds: []round{{}}}
	o := newOrchestrator(backend, noFetch(t), nil, "")

	require.NoError(t, o.Send(context.Background(), "hello"))

	transcript := o.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, models.Message{Role: models.RoleModel}, transcript[2])
}

func TestSessionOpenedOnceAcrossSends(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{text("one")}},
		{fragments: []llm.Fragment{text("two")}},
	}}
	o := newOrchestrator(backend, noFetch(t), nil, "")

	require.NoError(t, o.Send(context.Background(), "a"))
	require.NoError(t, o.Send(context.Background(), "b"))

	assert.Equal(t, 1, backend.opens)
	assert.Len(t, o.Transcript(), 5)
}

func TestResetSessionOpensNewSession(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{text("one")}},
		{fragments: []llm.Fragment{text("two")}},
	}}
	o := newOrchestrator(backend, noFetch(t), nil, "")

	require.NoError(t, o.Send(context.Background(), "a"))
	require.NoError(t, o.ResetSession())
	require.NoError(t, o.Send(context.Background(), "b"))

	assert.Equal(t, 2, backend.opens)
}

func TestSendIsSingleFlight(t *testing.T) {
	backend := &fakeBackend{rounds: []round{{fragments: []llm.Fragment{text("a"), text("b")}}}}
	var nested []error
	var o *Orchestrator
	o = New(Config{
		Session: llm.NewHandle(backend, SessionConfig(nil, nil)),
		Callbacks: Callbacks{OnMessage: func(int, models.Message) {
			nested = append(nested, o.Send(context.Background(), "overlap"))
			assert.ErrorIs(t, o.ResetSession(), ErrBusy)
		}},
	})

	require.NoError(t, o.Send(context.Background(), "first"))

	require.NotEmpty(t, nested)
	for _, err := range nested {
		assert.ErrorIs(t, err, ErrBusy)
	}
	assert.Len(t, o.Transcript(), 3, "overlapping sends append nothing")
}

func TestSendCancelledContext(t *testing.T) {
	backend := &fakeBackend{rounds: []round{{fragments: []llm.Fragment{text("a"), text("b")}}}}
	ctx, cancel := context.WithCancel(context.Background())
	o := New(Config{
		Session: llm.NewHandle(backend, SessionConfig(nil, nil)),
		Callbacks: Callbacks{OnMessage: func(_ int, m models.Message) {
			if m.Role == models.RoleModel && strings.HasPrefix(m.Text, "a") {
				cancel()
			}
		}},
	})

	require.NoError(t, o.Send(ctx, "go"))

	transcript := o.Transcript()
	assert.Equal(t, ApologyNotice, transcript[len(transcript)-1].Text)
	assert.Equal(t, StateIdle, o.State())
}

func TestToolCallWithoutToolConfigured(t *testing.T) {
	backend := &fakeBackend{rounds: []round{
		{fragments: []llm.Fragment{{ToolCalls: []llm.ToolCall{toolCall("c", "0xabc")}}}},
	}}
	o := New(Config{Session: llm.NewHandle(backend, SessionConfig(nil, nil))})

	require.NoError(t, o.Send(context.Background(), "price?"))

	transcript := o.Transcript()
	assert.Equal(t, ToolFailureNotice, transcript[len(transcript)-1].Text)
}

func TestRestoredTranscriptAndClearArtifact(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleModel, Text: Greeting},
		{Role: models.RoleUser, Text: "build"},
		{Role: models.RoleModel, Text: "done", Suggestions: []string{"x"}},
	}
	o := New(Config{
		Session:    llm.NewHandle(&fakeBackend{}, SessionConfig(nil, history)),
		Transcript: history,
		Artifact:   "<DOC/>",
	})

	got := o.Transcript()
	assert.Equal(t, history, got)
	got[2].Suggestions[0] = "mutated"
	assert.Equal(t, "x", o.Transcript()[2].Suggestions[0], "Transcript returns a copy")

	o.ClearArtifact()
	_, ok := o.Artifact()
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "tool_pending", StateToolPending.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSessionConfigHistory(t *testing.T) {
	transcript := []models.Message{
		{Role: models.RoleModel, Text: Greeting},
		{Role: models.RoleUser, Text: "build a clock"},
		{Role: models.RoleModel, Text: ApologyNotice},
		{Role: models.RoleUser, Text: "again"},
		{Role: models.RoleModel, Text: "Here it is"},
		{Role: models.RoleModel, Text: ToolFailureNotice},
	}

	cfg := SessionConfig(nil, transcript)

	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Text: "again"},
		{Role: models.RoleModel, Text: "Here it is"},
	}, cfg.History, "a question that only got the apology is not replayed")
	assert.Empty(t, cfg.Tools)
	assert.Nil(t, SessionConfig(nil, nil).History)
}

func TestSessionConfigHistoryAlternatesRoles(t *testing.T) {
	transcript := []models.Message{
		{Role: models.RoleModel, Text: Greeting},
		{Role: models.RoleUser, Text: "one"},
		{Role: models.RoleModel, Text: "first answer"},
		{Role: models.RoleUser, Text: "two"},
		{Role: models.RoleModel, Text: ApologyNotice},
		{Role: models.RoleUser, Text: "three"},
		{Role: models.RoleModel, Text: "*Scanning DexScreener for abc...*"},
		{Role: models.RoleModel, Text: ToolFailureNotice},
		{Role: models.RoleUser, Text: "four"},
	}

	history := SessionConfig(nil, transcript).History

	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Text: "one"},
		{Role: models.RoleModel, Text: "first answer"},
		{Role: models.RoleUser, Text: "three"},
		{Role: models.RoleModel, Text: "*Scanning DexScreener for abc...*"},
	}, history)
	for i := 1; i < len(history); i++ {
		if history[i].Role == models.RoleUser {
			assert.Equal(t, models.RoleModel, history[i-1].Role, "user turn at %d follows a user turn", i)
		}
	}
}
