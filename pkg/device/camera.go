package device

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// StillCamera serves a fixed frame, loaded from an image file. Headless
// rigs point it at a snapshot of the mixer; interactive rigs can swap the
// frame as new captures arrive. It implements live.VideoSource.
type StillCamera struct {
	mu    sync.RWMutex
	frame image.Image
}

// NewStillCamera loads the initial frame from path.
func NewStillCamera(path string) (*StillCamera, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame image: %w", err)
	}
	defer f.Close()

	frame, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame image %s: %w", path, err)
	}
	return &StillCamera{frame: frame}, nil
}

// Frame returns the current frame.
func (c *StillCamera) Frame() (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frame == nil {
		return nil, false
	}
	return c.frame, true
}

// SetFrame replaces the current frame. A nil frame makes the sampler skip
// ticks until a new one arrives.
func (c *StillCamera) SetFrame(frame image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
}
