package ws

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

const defaultConnectTimeout = 15 * time.Second

// Config describes the endpoint for the WebSocket dialer.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the remote live session.
	URL string

	// Token, if set, is sent as a bearer Authorization header.
	Token string

	// ConnectTimeout bounds the dial handshake when the caller's context
	// carries no deadline. Default: 15s.
	ConnectTimeout time.Duration
}

// Dialer opens WebSocket channels. It implements live.Dialer.
type Dialer struct {
	cfg Config
}

// NewDialer creates a dialer for the configured endpoint.
func NewDialer(cfg Config) *Dialer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &Dialer{cfg: cfg}
}

// Dial connects to the remote session and starts the read loop. The
// handler's OnOpen fires once the connection is established, before any
// OnMessage.
func (d *Dialer) Dial(ctx context.Context, handler live.ChannelHandler) (live.AgentChannel, error) {
	headers := make(http.Header)
	if d.cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, d.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, d.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed (status %d): %w", d.cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", d.cfg.URL, err)
	}

	c := &Channel{
		conn:    conn,
		handler: handler,
	}
	if handler.OnOpen != nil {
		handler.OnOpen()
	}
	go c.readLoop()
	return c, nil
}

// Channel is a live WebSocket connection to the remote session. It
// implements live.AgentChannel.
type Channel struct {
	conn    *websocket.Conn
	handler live.ChannelHandler

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// SendAudio sends one PCM chunk as an inline realtime media frame.
func (c *Channel) SendAudio(pcm []byte) error {
	return c.sendJSON(clientMediaFrame{Media: inlineMedia{
		MIMEType: live.MIMEAudioPCM16k,
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}})
}

// SendFrame sends one base64 JPEG frame as an inline realtime media frame.
func (c *Channel) SendFrame(jpegB64 string) error {
	return c.sendJSON(clientMediaFrame{Media: inlineMedia{
		MIMEType: live.MIMEImageJPEG,
		Data:     jpegB64,
	}})
}

// SendToolResponse acknowledges a tool call by its identifier.
func (c *Channel) SendToolResponse(id string, response map[string]any) error {
	return c.sendJSON(clientToolResponseFrame{ToolResponse: toolResponseBody{
		FunctionResponses: []functionResponse{{
			ID:       id,
			Name:     live.InstructionToolName,
			Response: response,
		}},
	}})
}

func (c *Channel) sendJSON(v any) error {
	if c.closed.Load() {
		return fmt.Errorf("channel is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once, including from the read loop's own callbacks; it does
// not wait for the read loop to exit.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}

func (c *Channel) readLoop() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if c.handler.OnClose != nil {
					c.handler.OnClose()
				}
				return
			}
			if c.handler.OnError != nil {
				c.handler.OnError(err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := decodeServerFrame(data)
		if err != nil {
			// Payload error, not a transport failure: drop the frame and
			// keep the stream alive.
			continue
		}
		if c.handler.OnMessage != nil {
			c.handler.OnMessage(msg)
		}
	}
}
