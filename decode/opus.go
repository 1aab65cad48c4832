package decode

import (
	"sync"
)

// opusResult is what either the native or software Opus path produces.
type opusResult struct {
	samples []int16
	err     error
}

// nativeOpusFactory is populated by opus_native.go's init() when this
// binary was built with the native codec enabled (build tag `opus` or
// `with_opus_c`, plus cgo). It stays nil otherwise, so opusPath falls back
// to the software decoder without any build-tag branching at call sites.
var nativeOpusFactory func(sampleRate, channels int) (nativeOpusDecoder, error)

// nativeOpusDecoder delivers decoded frames asynchronously via a callback,
// matching the host SDK's own async native-decoder shape (spec §4.D, §9).
type nativeOpusDecoder interface {
	DecodeAsync(payload []byte, done func(samples []int16, err error))
	Close() error
}

// opusPath implements the spec's "try native, fall back to software"
// decision (spec §4.D): native is attempted once per construction; once it
// is found unavailable the path commits to software for the rest of the
// session, re-optimistic again only after Close/recreate (spec §4.E Close).
type opusPath struct {
	sampleRate int
	channels   int

	mu              sync.Mutex
	nativeAvailable bool
	nativeTried     bool
	native          nativeOpusDecoder

	softOnce sync.Once
	soft     *softOpusDecoder
	softErr  error
}

func newOpusPath(sampleRate, channels int) *opusPath {
	return &opusPath{
		sampleRate:      sampleRate,
		channels:        channels,
		nativeAvailable: nativeOpusFactory != nil,
	}
}

// decodeAsync always delivers its result via done, even for the software
// path, so callers have one async shape regardless of which path served
// the request.
func (p *opusPath) decodeAsync(payload []byte, done func(opusResult)) {
	p.mu.Lock()
	if p.nativeAvailable && !p.nativeTried {
		p.nativeTried = true
		dec, err := nativeOpusFactory(p.sampleRate, p.channels)
		if err != nil {
			p.nativeAvailable = false
			p.native = nil
		} else {
			p.native = dec
		}
	}
	native := p.native
	p.mu.Unlock()

	if native != nil {
		native.DecodeAsync(payload, func(samples []int16, err error) {
			if err != nil {
				p.mu.Lock()
				p.nativeAvailable = false
				p.native = nil
				p.mu.Unlock()
				p.decodeSoftware(payload, done)
				return
			}
			done(opusResult{samples: samples})
		})
		return
	}

	p.decodeSoftware(payload, done)
}

func (p *opusPath) decodeSoftware(payload []byte, done func(opusResult)) {
	p.softOnce.Do(func() {
		p.soft, p.softErr = newSoftOpusDecoder(p.sampleRate, p.channels)
	})
	if p.softErr != nil {
		done(opusResult{err: p.softErr})
		return
	}
	samples, err := p.soft.Decode(payload)
	done(opusResult{samples: samples, err: err})
}

func (p *opusPath) close() error {
	p.mu.Lock()
	native := p.native
	p.native = nil
	p.mu.Unlock()
	if native != nil {
		return native.Close()
	}
	return nil
}
