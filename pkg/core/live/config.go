package live

import (
	"time"
)

// SessionState represents the current state of the live session.
type SessionState int

const (
	// StateConnecting is the initial state while device capture and the
	// duplex channel are being established.
	StateConnecting SessionState = iota
	// StateConnected is when media is streaming in both directions.
	StateConnected
	// StateDisconnected is terminal: the session ended cleanly.
	StateDisconnected
	// StateError is terminal: the session ended with a fatal error.
	StateError
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state is final for this Session instance.
// A fresh Session must be constructed to retry.
func (s SessionState) Terminal() bool {
	return s == StateDisconnected || s == StateError
}

// SessionConfig holds all configuration for a live session.
type SessionConfig struct {
	// InputAudio is the capture-side format. The remote service fixes this
	// at 16 kHz mono 16-bit PCM.
	InputAudio AudioConfig `json:"input_audio"`

	// OutputAudio is the playback-side format. The remote service fixes
	// this at 24 kHz mono 16-bit PCM.
	OutputAudio AudioConfig `json:"output_audio"`

	// BlockSize is the number of float samples per encoder callback.
	// Default: 4096 (≈256 ms at 16 kHz).
	BlockSize int `json:"block_size"`

	// FrameRate is how often the current video frame is sampled, in frames
	// per second. Default: 1.5.
	FrameRate float64 `json:"frame_rate"`

	// FrameJPEGQuality is the JPEG quality factor for sampled frames.
	// Default: 60.
	FrameJPEGQuality int `json:"frame_jpeg_quality"`

	// InstructionTTL is how long an instruction stays current before it
	// expires, unless replaced earlier. Default: 8s.
	InstructionTTL time.Duration `json:"instruction_ttl"`

	// TransmitBuffer is the outbound media queue depth. Sends beyond it are
	// dropped rather than blocking the capture callbacks. Default: 64.
	TransmitBuffer int `json:"transmit_buffer"`

	// EventBuffer is the session events channel depth. Default: 64.
	EventBuffer int `json:"event_buffer"`
}

// DefaultSessionConfig returns a SessionConfig with the formats the remote
// service requires and sensible defaults everywhere else.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		InputAudio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			BitsPerSample: 16,
		},
		OutputAudio: AudioConfig{
			SampleRate:    24000,
			Channels:      1,
			BitsPerSample: 16,
		},
		BlockSize:        4096,
		FrameRate:        1.5,
		FrameJPEGQuality: 60,
		InstructionTTL:   8 * time.Second,
		TransmitBuffer:   64,
		EventBuffer:      64,
	}
}

// FrameInterval returns the period between frame samples.
func (c SessionConfig) FrameInterval() time.Duration {
	rate := c.FrameRate
	if rate <= 0 {
		rate = 1.5
	}
	return time.Duration(float64(time.Second) / rate)
}

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Seconds returns the playback duration of the given byte count.
func (c AudioConfig) Seconds(bytes int) float64 {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float64(bytes) / float64(bps)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return (bytes * 1000) / bps
}
