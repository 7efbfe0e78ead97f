package live

import (
	"context"
)

// MIME types for outbound media payloads.
const (
	MIMEAudioPCM16k = "audio/pcm;rate=16000"
	MIMEImageJPEG   = "image/jpeg"
)

// InstructionToolName is the single callable tool the remote agent may
// invoke: displayInstruction(action, message).
const InstructionToolName = "displayInstruction"

// FunctionCall is a remote tool-call notification.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ServerMessage is one inbound notification from the remote session.
// A message carries at most one inline audio payload; Interrupted signals
// a barge-in (user spoke over the agent) and requires an immediate
// playback flush.
type ServerMessage struct {
	ToolCalls   []FunctionCall
	AudioB64    string
	Interrupted bool
}

// ChannelHandler receives the duplex channel's inbound events. Callbacks
// are invoked from the channel's single read loop; they must not block.
type ChannelHandler struct {
	OnOpen    func()
	OnMessage func(ServerMessage)
	OnClose   func()
	OnError   func(error)
}

// AgentChannel is the outbound half of the duplex channel to the remote
// session. Every send is asynchronous and independent; ordering across
// payload types is not guaranteed.
type AgentChannel interface {
	// SendAudio transmits one 16-bit PCM chunk at 16 kHz.
	SendAudio(pcm []byte) error

	// SendFrame transmits one base64-encoded JPEG frame.
	SendFrame(jpegB64 string) error

	// SendToolResponse acknowledges a tool call, correlated by its id,
	// so the remote session can continue its turn.
	SendToolResponse(id string, response map[string]any) error

	// Close discards the channel handle. Safe to call more than once.
	Close() error
}

// Dialer opens the duplex channel to the remote session. The concrete
// transport is an external collaborator; implementations live under
// pkg/transport.
type Dialer interface {
	Dial(ctx context.Context, handler ChannelHandler) (AgentChannel, error)
}
