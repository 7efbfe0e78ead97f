package live

// AudioEncoder converts captured floating-point audio blocks into 16-bit
// PCM chunks and hands each one to the transmit path. It runs once per
// fixed-size input block while the session is connected.
//
// OnBlock is the single audio-side suspension point: it must never block,
// so the send function it is constructed with must be fire-and-forget.
type AudioEncoder struct {
	send func(pcm []byte)
}

// NewAudioEncoder creates an encoder that forwards chunks via send.
func NewAudioEncoder(send func(pcm []byte)) *AudioEncoder {
	return &AudioEncoder{send: send}
}

// OnBlock encodes one captured block and forwards the resulting chunk.
// The chunk is not retained after the send.
func (e *AudioEncoder) OnBlock(samples []float32) {
	if len(samples) == 0 || e.send == nil {
		return
	}
	e.send(EncodePCM16(samples))
}
