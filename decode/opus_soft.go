package decode

import (
	"fmt"

	"layeh.com/gopus"
)

// maxOpusFrameSamples bounds a single Opus frame at 120ms @ 48kHz, the
// largest frame size the codec defines.
const maxOpusFrameSamples = 48000 * 120 / 1000

// softOpusDecoder is the pure-software fallback used when no native/OS
// Opus decoder is available, constructed lazily on first use.
type softOpusDecoder struct {
	dec      *gopus.Decoder
	channels int
}

func newSoftOpusDecoder(sampleRate, channels int) (*softOpusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("decode: gopus.NewDecoder: %w", err)
	}
	return &softOpusDecoder{dec: dec, channels: channels}, nil
}

// Decode returns interleaved int16 samples; callers normalize to float32.
func (d *softOpusDecoder) Decode(payload []byte) ([]int16, error) {
	samples, err := d.dec.Decode(payload, maxOpusFrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("decode: gopus decode: %w", err)
	}
	return samples, nil
}
