// Package device adapts real hardware to the capture and playback
// abstractions of pkg/core/live: a malgo microphone, an oto speaker line,
// and a still-image camera source for headless rigs.
package device

import (
	"context"
	"fmt"
	"image"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

// AV combines a microphone and a video source into one capture device.
// It implements live.MediaDevice.
type AV struct {
	format    live.AudioConfig
	blockSize int
	video     live.VideoSource
}

// NewAV creates a device that records audio in the given format, splits it
// into blockSize-sample blocks, and serves frames from video. video may be
// nil for audio-only rigs.
func NewAV(format live.AudioConfig, blockSize int, video live.VideoSource) *AV {
	return &AV{format: format, blockSize: blockSize, video: video}
}

// Open acquires the microphone and returns the combined capture handle.
func (d *AV) Open(ctx context.Context) (live.Capture, error) {
	mic, err := openMicrophone(d.format, d.blockSize)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	return &avCapture{mic: mic, video: d.video}, nil
}

type avCapture struct {
	mic   *microphone
	video live.VideoSource
}

func (c *avCapture) Frame() (image.Image, bool) {
	if c.video == nil {
		return nil, false
	}
	return c.video.Frame()
}

func (c *avCapture) AudioBlocks() <-chan []float32 {
	return c.mic.blocks
}

func (c *avCapture) Stop() error {
	return c.mic.stop()
}
