package live

import (
	"github.com/MostafaRabia/mixer-fixer/pkg/core"
)

// Event is the interface for all live session events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted when the session state changes.
type StateChangedEvent struct {
	From SessionState `json:"from"`
	To   SessionState `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// AgentSpeakingEvent is emitted when the agent starts speaking (first
// active segment scheduled) and when it is no longer speaking (active set
// drained or flushed).
type AgentSpeakingEvent struct {
	Speaking bool `json:"speaking"`
}

func (e *AgentSpeakingEvent) EventType() string { return "agent.speaking" }

// InterruptedEvent is emitted when the remote side signals a barge-in and
// playback has been flushed.
type InterruptedEvent struct{}

func (e *InterruptedEvent) EventType() string { return "playback.interrupted" }

// InstructionEvent is emitted when the current instruction changes.
// Instruction is nil when the previous one expired.
type InstructionEvent struct {
	Instruction *Instruction `json:"instruction"`
}

func (e *InstructionEvent) EventType() string { return "instruction.changed" }

// ErrorEvent carries a session error. Fatal errors are followed by the
// ERROR terminal state; non-fatal ones (decode, malformed tool call) leave
// the session connected.
type ErrorEvent struct {
	Err *core.Error `json:"error"`
}

func (e *ErrorEvent) EventType() string { return "session.error" }

// SessionClosedEvent is emitted once, when the session ends.
type SessionClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *SessionClosedEvent) EventType() string { return "session.closed" }

// DebugEvent mirrors debug log lines for programmatic access.
type DebugEvent struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (e *DebugEvent) EventType() string { return "debug" }
