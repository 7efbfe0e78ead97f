package live

import (
	"context"
	"image"
)

// VideoSource provides the current video frame, if one is available.
// Frame returns false when no frame has been produced yet; the sampler
// skips that tick rather than queuing a catch-up.
type VideoSource interface {
	Frame() (image.Image, bool)
}

// Capture is a combined audio+video capture handle. Implementations live
// under pkg/device; tests use in-memory fakes.
type Capture interface {
	VideoSource

	// AudioBlocks yields fixed-size blocks of mono float32 samples in
	// [-1, 1] at the input sample rate. The channel is closed when the
	// capture stops.
	AudioBlocks() <-chan []float32

	// Stop releases all device tracks. Idempotent.
	Stop() error
}

// MediaDevice obtains a capture handle from the hardware. Constructing the
// handle is the primary failure point (permission denial, hardware
// absence); failures surface as device-access errors and are never retried
// automatically.
type MediaDevice interface {
	Open(ctx context.Context) (Capture, error)
}
