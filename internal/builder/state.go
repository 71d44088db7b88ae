package builder

// State is the position of the orchestrator in its turn loop.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateToolPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateToolPending:
		return "tool_pending"
	default:
		return "unknown"
	}
}
