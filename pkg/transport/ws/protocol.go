// Package ws implements the duplex agent channel over a WebSocket
// connection. Outbound media travels as JSON frames with an inline
// mime-typed payload; inbound frames carry synthesized audio, tool calls,
// and the barge-in flag.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

// inlineMedia is one mime-typed payload, base64-encoded.
type inlineMedia struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// clientMediaFrame is an outbound realtime media message.
type clientMediaFrame struct {
	Media inlineMedia `json:"media"`
}

// functionResponse acknowledges one tool call, correlated by id.
type functionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// clientToolResponseFrame is an outbound tool-call acknowledgment.
type clientToolResponseFrame struct {
	ToolResponse toolResponseBody `json:"toolResponse"`
}

type toolResponseBody struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

// serverFrame is one inbound message. Exactly one of the optional
// sections is expected per frame, but nothing breaks if a frame carries
// several.
type serverFrame struct {
	ServerContent *serverContent  `json:"serverContent,omitempty"`
	ToolCall      *serverToolCall `json:"toolCall,omitempty"`
}

type serverContent struct {
	Audio       *inlineMedia `json:"audio,omitempty"`
	Interrupted bool         `json:"interrupted,omitempty"`
}

type serverToolCall struct {
	FunctionCalls []serverFunctionCall `json:"functionCalls"`
}

type serverFunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// decodeServerFrame maps one inbound text frame to the channel message
// the session consumes.
func decodeServerFrame(data []byte) (live.ServerMessage, error) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return live.ServerMessage{}, fmt.Errorf("decode server frame: %w", err)
	}

	var msg live.ServerMessage
	if frame.ServerContent != nil {
		msg.Interrupted = frame.ServerContent.Interrupted
		if frame.ServerContent.Audio != nil {
			msg.AudioB64 = frame.ServerContent.Audio.Data
		}
	}
	if frame.ToolCall != nil {
		for _, call := range frame.ToolCall.FunctionCalls {
			msg.ToolCalls = append(msg.ToolCalls, live.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			})
		}
	}
	return msg, nil
}
