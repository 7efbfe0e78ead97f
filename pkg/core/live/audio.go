package live

import (
	"encoding/base64"

	"github.com/MostafaRabia/mixer-fixer/pkg/core"
)

// EncodePCM16 converts floating-point samples in [-1, 1] to 16-bit signed
// little-endian PCM. Samples outside the range are clamped before scaling
// by 32767.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		s := int16(v * 32767.0)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodePCM16Payload decodes one inline base64 audio payload into a PCM
// buffer and returns its playback duration in seconds under the given
// format. A malformed payload yields a *core.Error of type ErrDecode.
func DecodePCM16Payload(b64 string, format AudioConfig) ([]byte, float64, error) {
	if b64 == "" {
		return nil, 0, core.NewDecodeError("empty audio payload", nil)
	}
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, 0, core.NewDecodeError("audio payload is not valid base64", err)
	}
	if len(pcm) == 0 {
		return nil, 0, core.NewDecodeError("audio payload decoded to zero bytes", nil)
	}
	if len(pcm)%2 != 0 {
		return nil, 0, core.NewDecodeError("audio payload is not whole 16-bit samples", nil)
	}
	return pcm, format.Seconds(len(pcm)), nil
}
