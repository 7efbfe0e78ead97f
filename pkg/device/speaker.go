package device

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

// OtoLine plays scheduled PCM segments through the speaker. It implements
// live.OutputLine.
//
// The playback clock is wall time since the line was opened. Segments are
// armed with timers against that clock; the scheduler's monotonic-offset
// rule keeps them from overlapping, so each segment gets its own player.
type OtoLine struct {
	ctx    *oto.Context
	format live.AudioConfig
	epoch  time.Time

	mu     sync.Mutex
	closed bool
}

// NewOtoLine opens the speaker in the given format.
func NewOtoLine(format live.AudioConfig) (*OtoLine, error) {
	// ~100 ms device buffer keeps latency low without starving the device.
	opts := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	return &OtoLine{
		ctx:    ctx,
		format: format,
		epoch:  time.Now(),
	}, nil
}

// Now returns the output clock position in seconds.
func (l *OtoLine) Now() float64 {
	return time.Since(l.epoch).Seconds()
}

// PlayAt schedules pcm to begin at offset seconds on the output clock.
// It never blocks and never invokes onEnded synchronously.
func (l *OtoLine) PlayAt(pcm []byte, offset float64, onEnded func()) (live.Voice, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, fmt.Errorf("output line is closed")
	}
	l.mu.Unlock()

	delay := time.Duration((offset - l.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	duration := time.Duration(l.format.Seconds(len(pcm)) * float64(time.Second))

	v := &otoVoice{}
	v.startTimer = time.AfterFunc(delay, func() { v.start(l.ctx, pcm) })
	v.endTimer = time.AfterFunc(delay+duration, func() { v.end(onEnded) })
	return v, nil
}

// Close releases the output context. Voices already armed are stopped by
// the scheduler before it closes the line.
func (l *OtoLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	// oto contexts have no Close; suspending stops the audio thread's
	// output until process exit.
	return l.ctx.Suspend()
}

// otoVoice is one scheduled segment: a start timer, an end timer, and the
// player that exists between the two.
type otoVoice struct {
	mu         sync.Mutex
	player     *oto.Player
	startTimer *time.Timer
	endTimer   *time.Timer
	stopped    bool
	ended      bool
}

func (v *otoVoice) start(ctx *oto.Context, pcm []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped || v.ended {
		return
	}
	v.player = ctx.NewPlayer(bytes.NewReader(pcm))
	v.player.Play()
}

// end fires on the segment's natural completion.
func (v *otoVoice) end(onEnded func()) {
	v.mu.Lock()
	if v.stopped || v.ended {
		v.mu.Unlock()
		return
	}
	v.ended = true
	player := v.player
	v.player = nil
	v.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
	if onEnded != nil {
		onEnded()
	}
}

// Stop forcibly ends playback. The ended callback will not fire after
// Stop returns.
func (v *otoVoice) Stop() {
	v.mu.Lock()
	if v.stopped || v.ended {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.startTimer.Stop()
	v.endTimer.Stop()
	player := v.player
	v.player = nil
	v.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
}
