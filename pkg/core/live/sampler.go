package live

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
)

// FrameSampler periodically rasterizes the current video frame into a
// compressed JPEG payload at a bounded rate. Each tick supersedes the
// previous one: at most one compression is in flight per tick interval,
// and a slow compression never stalls subsequent ticks.
type FrameSampler struct {
	src      VideoSource
	interval time.Duration
	quality  int
	send     func(jpegB64 string)
	encode   func(frame image.Image, quality int) (string, error)

	inFlight atomic.Bool
	done     chan struct{}
	once     sync.Once
	debug    func(category, message string)
}

// NewFrameSampler creates a sampler over src that hands encoded frames to
// send. It does not start ticking until Start is called.
func NewFrameSampler(src VideoSource, interval time.Duration, quality int, send func(jpegB64 string), debug func(category, message string)) *FrameSampler {
	if interval <= 0 {
		interval = time.Second * 2 / 3
	}
	if quality <= 0 {
		quality = 60
	}
	return &FrameSampler{
		src:      src,
		interval: interval,
		quality:  quality,
		send:     send,
		encode:   EncodeFrameJPEG,
		done:     make(chan struct{}),
		debug:    debug,
	}
}

// Start begins the sampling timer.
func (f *FrameSampler) Start() {
	go f.run()
}

func (f *FrameSampler) run() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.sample()
		}
	}
}

// sample handles one timer tick. If no frame is available the tick is
// skipped with no queuing or catch-up; if a compression from an earlier
// tick is still in flight, this tick is superseded by it.
func (f *FrameSampler) sample() {
	if !f.inFlight.CompareAndSwap(false, true) {
		return
	}

	frame, ok := f.src.Frame()
	if !ok {
		f.inFlight.Store(false)
		return
	}

	// Compress off-tick so encoding time never delays the next tick.
	go func() {
		defer f.inFlight.Store(false)

		b64, err := f.encode(frame, f.quality)
		if err != nil {
			if f.debug != nil {
				f.debug("SAMPLER", "frame encode failed: "+err.Error())
			}
			return
		}
		select {
		case <-f.done:
		default:
			f.send(b64)
		}
	}()
}

// Stop clears the sampling timer. Idempotent.
func (f *FrameSampler) Stop() {
	f.once.Do(func() {
		close(f.done)
	})
}

// EncodeFrameJPEG downscales the frame to half its native resolution,
// compresses it as JPEG at the given quality, and base64-encodes the
// result.
func EncodeFrameJPEG(frame image.Image, quality int) (string, error) {
	bounds := frame.Bounds()
	w := bounds.Dx() / 2
	h := bounds.Dy() / 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), frame, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
