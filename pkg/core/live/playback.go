package live

import (
	"fmt"
	"sync"
)

// Voice is one scheduled playback of a segment on the output line.
type Voice interface {
	// Stop forcibly ends playback. The line must not invoke the segment's
	// ended callback after Stop returns.
	Stop()
}

// OutputLine is the playback clock and sink: the output audio context.
//
// PlayAt schedules pcm to begin at offset seconds on the line's clock and
// invokes onEnded once when playback completes naturally. PlayAt must not
// block and must not invoke onEnded synchronously.
type OutputLine interface {
	// Now returns the current position of the output clock in seconds.
	Now() float64

	PlayAt(pcm []byte, offset float64, onEnded func()) (Voice, error)

	// Close releases the output audio context.
	Close() error
}

// PlaybackSegment is a decoded audio buffer with its scheduled start offset
// and computed duration. The scheduler owns it exclusively from creation
// until its ended signal fires.
type PlaybackSegment struct {
	PCM      []byte
	Start    float64
	Duration float64

	voice Voice
}

// End returns the offset at which the segment finishes.
func (s *PlaybackSegment) End() float64 {
	return s.Start + s.Duration
}

// PlaybackScheduler buffers and sequences decoded audio segments from the
// remote session so they play back-to-back with no gap or overlap.
//
// The sole correctness mechanism for non-overlap is the monotonic-offset
// rule: a segment starts at max(nextOffset, line.Now()). Decode results may
// arrive out of strict sequence; clamping against the live output clock
// keeps starts in the future without assuming arrival order.
//
// nextOffset and the active set are mutated only by the scheduler's three
// entry points: Enqueue, the segment-ended callback, and Interrupt.
type PlaybackScheduler struct {
	line   OutputLine
	format AudioConfig

	mu         sync.Mutex
	nextOffset float64
	active     map[*PlaybackSegment]struct{}
	closed     bool

	// onSpeaking reports transitions between "agent speaking" (active set
	// becomes non-empty) and "agent no longer speaking" (it empties).
	onSpeaking func(speaking bool)
	debug      func(category, message string)
}

// NewPlaybackScheduler creates a scheduler that plays segments on line.
func NewPlaybackScheduler(line OutputLine, format AudioConfig, onSpeaking func(bool), debug func(category, message string)) *PlaybackScheduler {
	return &PlaybackScheduler{
		line:       line,
		format:     format,
		active:     make(map[*PlaybackSegment]struct{}),
		onSpeaking: onSpeaking,
		debug:      debug,
	}
}

// Enqueue decodes one inline base64 audio payload and schedules it for
// gapless playback. A malformed payload returns a non-fatal decode error
// and nothing is scheduled; the session drops the payload and continues.
func (s *PlaybackScheduler) Enqueue(audioB64 string) error {
	pcm, duration, err := DecodePCM16Payload(audioB64, s.format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	start := s.nextOffset
	if now := s.line.Now(); now > start {
		// Live silence: start on the clock, not at a stale past offset.
		start = now
	}

	seg := &PlaybackSegment{PCM: pcm, Start: start, Duration: duration}
	voice, err := s.line.PlayAt(pcm, start, func() { s.segmentEnded(seg) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule playback: %w", err)
	}
	seg.voice = voice

	wasIdle := len(s.active) == 0
	s.active[seg] = struct{}{}
	// Advance immediately, not on completion, so a burst of same-tick
	// payloads queues back-to-back.
	s.nextOffset = seg.End()
	s.mu.Unlock()

	if s.debug != nil {
		s.debug("PLAYBACK", fmt.Sprintf("scheduled %.3fs at t=%.3f", duration, start))
	}
	if wasIdle && s.onSpeaking != nil {
		s.onSpeaking(true)
	}
	return nil
}

// segmentEnded releases a segment after its natural completion signal.
func (s *PlaybackScheduler) segmentEnded(seg *PlaybackSegment) {
	s.mu.Lock()
	if _, ok := s.active[seg]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, seg)
	idle := len(s.active) == 0 && !s.closed
	s.mu.Unlock()

	if idle && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}

// Interrupt handles a barge-in: every active segment is forcibly stopped,
// the active set is cleared, and the next playback offset resets to zero so
// the next payload starts immediately rather than after stale audio.
func (s *PlaybackScheduler) Interrupt() {
	s.flush(false)
}

// Close stops and releases every active segment and closes the output
// line. Idempotent.
func (s *PlaybackScheduler) Close() {
	s.flush(true)
}

func (s *PlaybackScheduler) flush(closing bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	voices := make([]Voice, 0, len(s.active))
	for seg := range s.active {
		if seg.voice != nil {
			voices = append(voices, seg.voice)
		}
	}
	hadActive := len(s.active) > 0
	s.active = make(map[*PlaybackSegment]struct{})
	s.nextOffset = 0
	if closing {
		s.closed = true
	}
	s.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	if closing {
		_ = s.line.Close()
	}
	if hadActive && !closing && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}

// NextOffset returns the offset at which the next segment would be
// scheduled, before clamping against the output clock.
func (s *PlaybackScheduler) NextOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextOffset
}

// ActiveCount returns the number of segments currently playing or pending.
func (s *PlaybackScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
