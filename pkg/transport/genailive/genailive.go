// Package genailive implements the duplex agent channel over the Gemini
// Live API. It is the production transport: realtime PCM and JPEG frames
// go out as inline media, synthesized audio and displayInstruction tool
// calls come back on the same bidirectional session.
package genailive

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"

	"google.golang.org/genai"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

// DefaultModel is the live-capable model used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash-live-001"

// Config configures the Gemini Live dialer.
type Config struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// Model overrides DefaultModel.
	Model string

	// SystemInstruction is the agent persona and task prompt.
	SystemInstruction string
}

// Dialer opens Gemini Live sessions. It implements live.Dialer.
type Dialer struct {
	cfg Config
}

// NewDialer creates a dialer for the Gemini Live API.
func NewDialer(cfg Config) *Dialer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Dialer{cfg: cfg}
}

// Dial connects a live session with audio responses and the instruction
// tool declared, then starts the receive loop. OnOpen fires before any
// OnMessage.
func (d *Dialer) Dial(ctx context.Context, handler live.ChannelHandler) (live.AgentChannel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	session, err := client.Live.Connect(ctx, d.cfg.Model, d.connectConfig())
	if err != nil {
		return nil, fmt.Errorf("live connect: %w", err)
	}

	c := &Channel{
		session: session,
		handler: handler,
	}
	if handler.OnOpen != nil {
		handler.OnOpen()
	}
	go c.receiveLoop()
	return c, nil
}

func (d *Dialer) connectConfig() *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		Tools:              []*genai.Tool{instructionTool()},
	}
	if d.cfg.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: d.cfg.SystemInstruction}},
		}
	}
	return cfg
}

// instructionTool declares displayInstruction(action, message).
func instructionTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        live.InstructionToolName,
			Description: "Show the user one repair instruction for the mixer they are pointing the camera at.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"action": {
						Type: genai.TypeString,
						Enum: []string{
							string(live.ActionShowMixer),
							string(live.ActionFixBuzz),
							string(live.ActionFixHum),
							string(live.ActionCheckCables),
							string(live.ActionCheckGain),
							string(live.ActionCheckPhantom),
							string(live.ActionCheckEQ),
							string(live.ActionAdjustFader),
							string(live.ActionSuccess),
							string(live.ActionFailure),
						},
					},
					"message": {Type: genai.TypeString},
				},
				Required: []string{"action", "message"},
			},
		}},
	}
}

// Channel is one Gemini Live session. It implements live.AgentChannel.
type Channel struct {
	session *genai.Session
	handler live.ChannelHandler

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// SendAudio sends one 16 kHz PCM chunk as realtime input.
func (c *Channel) SendAudio(pcm []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("channel is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: pcm, MIMEType: live.MIMEAudioPCM16k},
	})
}

// SendFrame sends one sampled JPEG frame as realtime input.
func (c *Channel) SendFrame(jpegB64 string) error {
	if c.closed.Load() {
		return fmt.Errorf("channel is closed")
	}
	raw, err := base64.StdEncoding.DecodeString(jpegB64)
	if err != nil {
		return fmt.Errorf("frame payload is not valid base64: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: raw, MIMEType: live.MIMEImageJPEG},
	})
}

// SendToolResponse acknowledges a tool call by its identifier.
func (c *Channel) SendToolResponse(id string, response map[string]any) error {
	if c.closed.Load() {
		return fmt.Errorf("channel is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       id,
			Name:     live.InstructionToolName,
			Response: response,
		}},
	})
}

// Close ends the live session. Safe to call more than once, including
// from the receive loop's own callbacks; it does not wait for the receive
// loop to exit.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.session.Close()
	})
	return nil
}

func (c *Channel) receiveLoop() {
	for {
		msg, err := c.session.Receive()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if c.handler.OnError != nil {
				c.handler.OnError(err)
			}
			return
		}
		for _, out := range convertServerMessage(msg) {
			if c.handler.OnMessage != nil {
				c.handler.OnMessage(out)
			}
		}
	}
}

// convertServerMessage maps one Gemini Live server message to channel
// messages. A model turn may carry several inline audio parts; each
// becomes its own message so the scheduler queues them individually.
func convertServerMessage(msg *genai.LiveServerMessage) []live.ServerMessage {
	if msg == nil {
		return nil
	}
	var out []live.ServerMessage

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			out = append(out, live.ServerMessage{Interrupted: true})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				out = append(out, live.ServerMessage{
					AudioB64: base64.StdEncoding.EncodeToString(part.InlineData.Data),
				})
			}
		}
	}

	if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
		converted := live.ServerMessage{}
		for _, call := range tc.FunctionCalls {
			if call == nil {
				continue
			}
			converted.ToolCalls = append(converted.ToolCalls, live.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			})
		}
		if len(converted.ToolCalls) > 0 {
			out = append(out, converted)
		}
	}
	return out
}
