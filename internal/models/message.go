package models

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message represents a single entry in a widget transcript.
// The last model message is rewritten in place while a reply streams in; everything else is append-only.
type Message struct {
	Role        Role     `json:"role"`                  // "user" or "model"
	Text        string   `json:"text"`                  // Display text (mutable while streaming)
	Suggestions []string `json:"suggestions,omitempty"` // Up to 3 quick re-prompts
	IsToolUse   bool     `json:"is_tool_use,omitempty"` // Set once the reply invoked the market-data tool
}

// Clone returns a deep copy so callers can't mutate transcript state through the suggestions slice.
func (m Message) Clone() Message {
	if m.Suggestions != nil {
		m.Suggestions = append([]string(nil), m.Suggestions...)
	}
	return m
}

// CloneMessages deep-copies a transcript.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
