//go:build (opus || with_opus_c) && cgo

package decode

import (
	msdkopus "github.com/livekit/media-sdk/opus"
	"github.com/livekit/protocol/logger"
)

func init() {
	nativeOpusFactory = newNativeOpusDecoder
}

// nativeMsdkOpusDecoder adapts media-sdk's Opus decoder to this package's
// async nativeOpusDecoder shape, used here without the RTP writer/SDP
// negotiation media-sdk normally wraps it in.
type nativeMsdkOpusDecoder struct {
	dec *msdkopus.Decoder
}

func newNativeOpusDecoder(sampleRate, channels int) (nativeOpusDecoder, error) {
	dec, err := msdkopus.NewDecoder(sampleRate, channels, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	return &nativeMsdkOpusDecoder{dec: dec}, nil
}

func (d *nativeMsdkOpusDecoder) DecodeAsync(payload []byte, done func([]int16, error)) {
	go func() {
		samples, err := d.dec.Decode(payload)
		done(samples, err)
	}()
}

func (d *nativeMsdkOpusDecoder) Close() error {
	return d.dec.Close()
}
