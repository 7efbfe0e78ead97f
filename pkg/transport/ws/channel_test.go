package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

// wsTestServer is a loopback remote session: it records inbound client
// frames and can push server frames.
type wsTestServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	frames []map[string]any
	auth   string
	ready  chan struct{}
}

func newWSTestServer(t *testing.T) (*wsTestServer, string) {
	t.Helper()
	s := &wsTestServer{t: t, ready: make(chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (s *wsTestServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("upgrade: %v", err)
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.auth = r.Header.Get("Authorization")
	s.mu.Unlock()
	close(s.ready)

	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, frame)
		s.mu.Unlock()
	}
}

func (s *wsTestServer) push(t *testing.T, frame any) {
	t.Helper()
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(frame); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func (s *wsTestServer) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *wsTestServer) frame(i int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[i]
}

// messageSink collects handler callbacks.
type messageSink struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	err      error
	messages []live.ServerMessage
}

func (m *messageSink) handler() live.ChannelHandler {
	return live.ChannelHandler{
		OnOpen: func() {
			m.mu.Lock()
			m.opened = true
			m.mu.Unlock()
		},
		OnMessage: func(msg live.ServerMessage) {
			m.mu.Lock()
			m.messages = append(m.messages, msg)
			m.mu.Unlock()
		},
		OnClose: func() {
			m.mu.Lock()
			m.closed = true
			m.mu.Unlock()
		},
		OnError: func(err error) {
			m.mu.Lock()
			m.err = err
			m.mu.Unlock()
		},
	}
}

func (m *messageSink) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChannel_SendAudio(t *testing.T) {
	server, url := newWSTestServer(t)
	sink := &messageSink{}

	d := NewDialer(Config{URL: url, Token: "secret-token"})
	ch, err := d.Dial(context.Background(), sink.handler())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	sink.mu.Lock()
	opened := sink.opened
	sink.mu.Unlock()
	if !opened {
		t.Error("OnOpen did not fire before Dial returned")
	}

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if err := ch.SendAudio(pcm); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	waitFor(t, func() bool { return server.frameCount() == 1 })

	server.mu.Lock()
	auth := server.auth
	server.mu.Unlock()
	if auth != "Bearer secret-token" {
		t.Errorf("missing bearer token, got %q", auth)
	}

	media, ok := server.frame(0)["media"].(map[string]any)
	if !ok {
		t.Fatalf("frame has no media section: %v", server.frame(0))
	}
	if media["mimeType"] != live.MIMEAudioPCM16k {
		t.Errorf("wrong mime type: %v", media["mimeType"])
	}
	if media["data"] != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("wrong payload: %v", media["data"])
	}
}

func TestChannel_SendFrameAndToolResponse(t *testing.T) {
	server, url := newWSTestServer(t)
	sink := &messageSink{}

	ch, err := NewDialer(Config{URL: url}).Dial(context.Background(), sink.handler())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if err := ch.SendFrame("anVuaw=="); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	if err := ch.SendToolResponse("call-1", map[string]any{"ok": true}); err != nil {
		t.Fatalf("send tool response: %v", err)
	}

	waitFor(t, func() bool { return server.frameCount() == 2 })

	media := server.frame(0)["media"].(map[string]any)
	if media["mimeType"] != live.MIMEImageJPEG || media["data"] != "anVuaw==" {
		t.Errorf("unexpected frame payload: %v", media)
	}

	raw, err := json.Marshal(server.frame(1))
	if err != nil {
		t.Fatal(err)
	}
	var ack clientToolResponseFrame
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode tool response frame: %v", err)
	}
	if len(ack.ToolResponse.FunctionResponses) != 1 {
		t.Fatalf("expected 1 function response, got %d", len(ack.ToolResponse.FunctionResponses))
	}
	fr := ack.ToolResponse.FunctionResponses[0]
	if fr.ID != "call-1" || fr.Name != live.InstructionToolName {
		t.Errorf("unexpected ack correlation: %+v", fr)
	}
}

func TestChannel_ReceivesServerFrames(t *testing.T) {
	server, url := newWSTestServer(t)
	sink := &messageSink{}

	ch, err := NewDialer(Config{URL: url}).Dial(context.Background(), sink.handler())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	server.push(t, serverFrame{ServerContent: &serverContent{
		Audio: &inlineMedia{MIMEType: "audio/pcm;rate=24000", Data: "AAAA"},
	}})
	server.push(t, serverFrame{ServerContent: &serverContent{Interrupted: true}})
	server.push(t, serverFrame{ToolCall: &serverToolCall{FunctionCalls: []serverFunctionCall{{
		ID:   "call-7",
		Name: live.InstructionToolName,
		Args: map[string]any{"action": "check_cables", "message": "افحص الكابلات"},
	}}}})

	waitFor(t, func() bool { return sink.messageCount() == 3 })

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.messages[0].AudioB64 != "AAAA" {
		t.Errorf("audio payload not surfaced: %+v", sink.messages[0])
	}
	if !sink.messages[1].Interrupted {
		t.Errorf("interrupted flag not surfaced: %+v", sink.messages[1])
	}
	calls := sink.messages[2].ToolCalls
	if len(calls) != 1 || calls[0].ID != "call-7" || calls[0].Args["action"] != "check_cables" {
		t.Errorf("tool call not surfaced: %+v", calls)
	}
}

func TestChannel_RemoteClose(t *testing.T) {
	server, url := newWSTestServer(t)
	sink := &messageSink{}

	ch, err := NewDialer(Config{URL: url}).Dial(context.Background(), sink.handler())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	<-server.ready
	server.mu.Lock()
	_ = server.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = server.conn.Close()
	server.mu.Unlock()

	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.closed
	})

	// Close after the remote already went away is still safe.
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestChannel_CloseFromOnClose(t *testing.T) {
	server, url := newWSTestServer(t)

	// Session teardown runs inside the close callback, on the read loop's
	// own goroutine. Close must return without waiting for that loop.
	handles := make(chan live.AgentChannel, 1)
	torndown := make(chan struct{})
	handler := live.ChannelHandler{
		OnClose: func() {
			ch := <-handles
			_ = ch.Close()
			close(torndown)
		},
	}

	ch, err := NewDialer(Config{URL: url}).Dial(context.Background(), handler)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	handles <- ch

	<-server.ready
	server.mu.Lock()
	_ = server.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = server.conn.Close()
	server.mu.Unlock()

	select {
	case <-torndown:
	case <-time.After(2 * time.Second):
		t.Fatal("Close called from OnClose did not return")
	}
}

func TestChannel_UndecodableFrameIsDropped(t *testing.T) {
	server, url := newWSTestServer(t)
	sink := &messageSink{}

	ch, err := NewDialer(Config{URL: url}).Dial(context.Background(), sink.handler())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	<-server.ready
	server.mu.Lock()
	err = server.conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	server.mu.Unlock()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	server.push(t, serverFrame{ServerContent: &serverContent{
		Audio: &inlineMedia{MIMEType: "audio/pcm;rate=24000", Data: "AAAA"},
	}})

	waitFor(t, func() bool { return sink.messageCount() == 1 })

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.messages[0].AudioB64 != "AAAA" {
		t.Errorf("frame after the bad one not delivered: %+v", sink.messages[0])
	}
	if sink.err != nil {
		t.Errorf("bad frame reported a transport error: %v", sink.err)
	}
	if sink.closed {
		t.Error("bad frame closed the stream")
	}
}

func TestChannel_CloseIsIdempotent(t *testing.T) {
	_, url := newWSTestServer(t)
	sink := &messageSink{}

	ch, err := NewDialer(Config{URL: url}).Dial(context.Background(), sink.handler())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := ch.SendAudio([]byte{0x00}); err == nil {
		t.Error("send after close should fail")
	}

	// A local close must not report OnClose or OnError.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.closed {
		t.Error("local close reported as remote close")
	}
	if sink.err != nil {
		t.Errorf("local close reported an error: %v", sink.err)
	}
}

func TestDialer_Failure(t *testing.T) {
	sink := &messageSink{}
	_, err := NewDialer(Config{URL: "ws://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond}).
		Dial(context.Background(), sink.handler())
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if sink.opened {
		t.Error("OnOpen fired for a failed dial")
	}
}
