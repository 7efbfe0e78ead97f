package live

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MostafaRabia/mixer-fixer/pkg/core"
)

// Session is one active call to the remote agent. It owns all device and
// timer resources transitively and tears them down exactly once on
// disconnect, error, or Stop. Exactly one Session is active at a time;
// terminal states are final and a fresh Session must be constructed to
// retry.
type Session struct {
	cfg    SessionConfig
	device MediaDevice
	dialer Dialer
	line   OutputLine

	mu      sync.Mutex
	state   SessionState
	started bool

	capture     Capture
	channel     AgentChannel
	transmitter *Transmitter
	encoder     *AudioEncoder
	sampler     *FrameSampler
	scheduler   *PlaybackScheduler
	board       *InstructionBoard

	events       chan Event
	eventMu      sync.RWMutex
	eventsClosed bool

	ready   chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	cancel  context.CancelFunc

	debugEnabled bool
}

// NewSession creates a session over the given device, channel dialer, and
// output line. Nothing is acquired until Start.
func NewSession(cfg SessionConfig, device MediaDevice, dialer Dialer, line OutputLine) *Session {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	return &Session{
		cfg:    cfg,
		device: device,
		dialer: dialer,
		line:   line,
		state:  StateConnecting,
		events: make(chan Event, cfg.EventBuffer),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// EnableDebug enables debug logging and DebugEvent emission.
func (s *Session) EnableDebug() {
	s.debugEnabled = true
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the channel for receiving session events. It is closed
// when the session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done returns a channel closed when the session has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Instruction returns the current instruction, or nil.
func (s *Session) Instruction() *Instruction {
	s.mu.Lock()
	board := s.board
	s.mu.Unlock()
	if board == nil {
		return nil
	}
	return board.Current()
}

// Start requests combined audio+video capture and opens the duplex channel
// to the remote session. Constructing the device handle is the primary
// failure point; on failure the session transitions to ERROR with a
// device-access error and is never retried automatically.
//
// The encoder and frame sampler are armed by the channel-open callback,
// which also transitions CONNECTING → CONNECTED.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)

	capture, err := s.device.Open(ctx)
	if err != nil {
		cerr := core.NewDeviceAccessError("camera/microphone unavailable", err)
		s.fail(cerr)
		return cerr
	}

	s.mu.Lock()
	s.capture = capture
	s.scheduler = NewPlaybackScheduler(s.line, s.cfg.OutputAudio, s.onSpeakingChange, s.debug)
	s.board = NewInstructionBoard(s.cfg.InstructionTTL, s.onInstructionChange)
	s.mu.Unlock()

	channel, err := s.dialer.Dial(ctx, ChannelHandler{
		OnOpen:    s.onChannelOpen,
		OnMessage: s.onChannelMessage,
		OnClose:   s.onChannelClose,
		OnError:   s.onChannelError,
	})
	if err != nil {
		cerr := core.NewChannelError("open duplex channel", err)
		s.fail(cerr)
		return cerr
	}

	s.mu.Lock()
	s.channel = channel
	s.transmitter = NewTransmitter(channel, s.cfg.TransmitBuffer, s.debug)
	s.encoder = NewAudioEncoder(s.transmitter.EnqueueAudio)
	s.sampler = NewFrameSampler(capture, s.cfg.FrameInterval(), s.cfg.FrameJPEGQuality, s.transmitter.EnqueueFrame, s.debug)
	s.mu.Unlock()

	close(s.ready)

	// The channel may have failed while Start was still wiring; teardown
	// already ran and skipped the components created after it.
	if s.stopped.Load() {
		s.sampler.Stop()
		s.transmitter.Close()
		_ = channel.Close()
	}
	return nil
}

// onChannelOpen transitions to CONNECTED and arms the outbound pipeline.
// The dialer may invoke it before Start has finished wiring components, so
// arming waits on the ready gate.
func (s *Session) onChannelOpen() {
	go func() {
		select {
		case <-s.ready:
		case <-s.done:
			return
		}
		if s.stopped.Load() {
			return
		}
		s.setState(StateConnected)
		go s.encodeLoop()
		s.sampler.Start()
	}()
}

// encodeLoop pumps captured audio blocks through the encoder while the
// session is connected.
func (s *Session) encodeLoop() {
	for {
		select {
		case <-s.done:
			return
		case block, ok := <-s.capture.AudioBlocks():
			if !ok {
				return
			}
			s.encoder.OnBlock(block)
		}
	}
}

// onChannelMessage routes one inbound notification. The dialer may deliver
// messages before Start has finished wiring components, so routing waits on
// the ready gate. Decode and tool-call payload errors are local: the
// payload is dropped and the session stays connected.
func (s *Session) onChannelMessage(msg ServerMessage) {
	select {
	case <-s.ready:
	case <-s.done:
		return
	}
	if s.stopped.Load() {
		return
	}

	if msg.Interrupted {
		s.debug("PLAYBACK", "barge-in: flushing scheduled audio")
		s.scheduler.Interrupt()
		s.emit(&InterruptedEvent{})
	}

	if msg.AudioB64 != "" {
		if err := s.scheduler.Enqueue(msg.AudioB64); err != nil {
			s.debug("PLAYBACK", "dropping payload: "+err.Error())
			if cerr, ok := err.(*core.Error); ok {
				s.emit(&ErrorEvent{Err: cerr})
			}
		}
	}

	if len(msg.ToolCalls) > 0 {
		if err := s.board.HandleToolCall(msg.ToolCalls, s.channel.SendToolResponse); err != nil {
			s.debug("TOOL", "dropping tool call: "+err.Error())
		}
	}
}

// onChannelClose handles a close initiated by the remote side.
func (s *Session) onChannelClose() {
	s.shutdown(StateDisconnected, "remote closed")
}

// onChannelError handles a channel error report. The session moves to
// ERROR and does not auto-reconnect.
func (s *Session) onChannelError(err error) {
	s.fail(core.NewChannelError("remote session error", err))
}

func (s *Session) onSpeakingChange(speaking bool) {
	s.emit(&AgentSpeakingEvent{Speaking: speaking})
}

func (s *Session) onInstructionChange(current *Instruction) {
	s.emit(&InstructionEvent{Instruction: current})
}

// Stop tears the session down: device tracks, sampler timer, instruction
// expiry timer, both audio contexts, the channel handle, and every active
// playback segment. Idempotent and callable from any state.
func (s *Session) Stop() error {
	s.shutdown(StateDisconnected, "stopped")
	return nil
}

// fail emits the error and tears down into the ERROR state.
func (s *Session) fail(cerr *core.Error) {
	s.emit(&ErrorEvent{Err: cerr})
	s.shutdown(StateError, string(cerr.Type))
}

// shutdown releases every resource exactly once, regardless of which
// terminal transition triggered it.
func (s *Session) shutdown(final SessionState, reason string) {
	if s.stopped.Swap(true) {
		return
	}

	s.debug("SESSION", "tearing down: "+reason)

	if s.cancel != nil {
		s.cancel()
	}
	if s.sampler != nil {
		s.sampler.Stop()
	}
	if s.board != nil {
		s.board.Close()
	}
	if s.capture != nil {
		_ = s.capture.Stop()
	}
	if s.scheduler != nil {
		s.scheduler.Close()
	} else if s.line != nil {
		_ = s.line.Close()
	}
	if s.transmitter != nil {
		s.transmitter.Close()
	}
	if s.channel != nil {
		_ = s.channel.Close()
	}

	// Terminal states are sticky: a Stop after a fatal error keeps ERROR.
	s.mu.Lock()
	terminal := s.state.Terminal()
	s.mu.Unlock()
	if !terminal {
		s.setState(final)
	}

	s.emit(&SessionClosedEvent{Reason: reason})
	close(s.done)
	s.closeEvents()
}

// setState updates the session state and emits an event.
func (s *Session) setState(newState SessionState) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	s.mu.Unlock()

	if oldState != newState {
		s.debug("SESSION", fmt.Sprintf("State: %s -> %s", oldState, newState))
		s.emit(&StateChangedEvent{From: oldState, To: newState})
	}
}

// emit sends an event to the events channel without blocking.
func (s *Session) emit(event Event) {
	s.eventMu.RLock()
	defer s.eventMu.RUnlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- event:
	default:
		// Channel full, drop event.
	}
}

func (s *Session) closeEvents() {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	if s.eventsClosed {
		return
	}
	s.eventsClosed = true
	close(s.events)
}

// debug logs a debug message if debug mode is enabled.
// Logs are printed to stderr with timestamps for visibility.
func (s *Session) debug(category, message string) {
	if s.debugEnabled {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(os.Stderr, "\033[90m%s\033[0m [\033[36m%-10s\033[0m] %s\n", timestamp, category, message)

		s.emit(&DebugEvent{Category: category, Message: message})
	}
}
