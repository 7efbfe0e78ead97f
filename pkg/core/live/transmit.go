package live

import (
	"fmt"
	"sync"
)

type mediaKind int

const (
	mediaAudio mediaKind = iota
	mediaFrame
)

type outboundMedia struct {
	kind mediaKind
	pcm  []byte
	b64  string
}

// Transmitter is the logical outbound queue to the remote session: PCM
// audio chunks and inline image frames, each tagged with a media type.
// Every send is asynchronous; within one type, sends follow production
// order. No backpressure is modeled: when the queue is full the payload is
// dropped rather than blocking a capture callback.
type Transmitter struct {
	channel AgentChannel
	queue   chan outboundMedia
	done    chan struct{}
	once    sync.Once
	debug   func(category, message string)
}

// NewTransmitter creates a transmitter over the given channel and starts
// its send loop.
func NewTransmitter(channel AgentChannel, buffer int, debug func(category, message string)) *Transmitter {
	if buffer <= 0 {
		buffer = 64
	}
	t := &Transmitter{
		channel: channel,
		queue:   make(chan outboundMedia, buffer),
		done:    make(chan struct{}),
		debug:   debug,
	}
	go t.run()
	return t
}

// EnqueueAudio queues one PCM chunk. Never blocks.
func (t *Transmitter) EnqueueAudio(pcm []byte) {
	t.enqueue(outboundMedia{kind: mediaAudio, pcm: pcm})
}

// EnqueueFrame queues one base64 JPEG frame. Never blocks.
func (t *Transmitter) EnqueueFrame(b64 string) {
	t.enqueue(outboundMedia{kind: mediaFrame, b64: b64})
}

func (t *Transmitter) enqueue(m outboundMedia) {
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.queue <- m:
	default:
		t.logf("TRANSMIT", "queue full, dropping %s payload", kindName(m.kind))
	}
}

func (t *Transmitter) run() {
	for {
		select {
		case <-t.done:
			return
		case m := <-t.queue:
			var err error
			switch m.kind {
			case mediaAudio:
				err = t.channel.SendAudio(m.pcm)
			case mediaFrame:
				err = t.channel.SendFrame(m.b64)
			}
			if err != nil {
				// Fire-and-forget: a failed send drops that payload only.
				t.logf("TRANSMIT", "send %s failed: %v", kindName(m.kind), err)
			}
		}
	}
}

// Close stops the send loop. Payloads still queued are discarded.
func (t *Transmitter) Close() {
	t.once.Do(func() {
		close(t.done)
	})
}

func (t *Transmitter) logf(category, format string, args ...any) {
	if t.debug != nil {
		t.debug(category, fmt.Sprintf(format, args...))
	}
}

func kindName(k mediaKind) string {
	if k == mediaAudio {
		return "audio"
	}
	return "frame"
}
