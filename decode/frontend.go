package decode

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sendspin-audio/sendspin-go/state"
	"github.com/sendspin-audio/sendspin-go/transport"
)

// FrontEnd dispatches binary audio frames to the codec matching the
// current stream format, stamping every resulting frame with the
// generation captured before decode started (spec §4.D).
type FrontEnd struct {
	events chan<- DecodedFrame
	logger *slog.Logger

	currentGeneration atomic.Uint32

	mu     sync.Mutex
	format state.StreamFormat
	flac   *flacPath
	opus   *opusPath
}

// NewFrontEnd builds a FrontEnd that delivers decoded frames on events.
// flac may be nil if the host never streams FLAC.
func NewFrontEnd(events chan<- DecodedFrame, flac FlacDecoder, logger *slog.Logger) *FrontEnd {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrontEnd{
		events: events,
		logger: logger.With("component", "decode"),
		flac:   newFlacPath(flac),
	}
}

// SetGeneration records the stream generation in effect, read back after
// every decode to drop stale frames (spec §4.D, §4.E's P3).
func (f *FrontEnd) SetGeneration(generation uint32) {
	f.currentGeneration.Store(generation)
}

// SetFormat installs a new current_format. A format update (same stream,
// new codec parameters) resets codec-path state (FLAC priming, Opus
// decoder) without touching the generation counter (spec §4.B).
func (f *FrontEnd) SetFormat(format state.StreamFormat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.format = format
	f.flac.reset()
	if format.Codec == "opus" {
		f.opus = newOpusPath(format.SampleRate, format.ChannelCount)
	} else {
		f.opus = nil
	}
}

// Close releases decoder handles, resetting the native-Opus-available flag
// to its optimistic default for the next session (spec §4.E Close).
func (f *FrontEnd) Close() error {
	f.mu.Lock()
	opus := f.opus
	f.opus = nil
	f.mu.Unlock()
	if opus != nil {
		return opus.close()
	}
	return nil
}

// HandleChunk decodes one binary audio chunk. The generation is captured
// by the caller before this is invoked (spec §4.D); HandleChunk re-checks
// it against the live generation after decode and drops stale results,
// whether the decode path was synchronous or async.
func (f *FrontEnd) HandleChunk(chunk transport.AudioChunk, capturedGeneration uint32) error {
	f.mu.Lock()
	format := f.format
	flac := f.flac
	opus := f.opus
	f.mu.Unlock()

	switch format.Codec {
	case "", "pcm":
		samples, err := decodePCM(chunk.Payload, format.BitDepth)
		if err != nil {
			return err
		}
		f.deliver(capturedGeneration, chunk.ServerTimeUs, samples, format)
		return nil

	case "flac":
		samples, err := flac.decode(chunk.Payload, format.CodecHeader)
		if err != nil {
			return err
		}
		f.deliver(capturedGeneration, chunk.ServerTimeUs, samples, format)
		return nil

	case "opus":
		if opus == nil {
			return fmt.Errorf("decode: opus frame arrived with no opus path installed")
		}
		opus.decodeAsync(chunk.Payload, func(res opusResult) {
			if res.err != nil {
				f.logger.Error("opus decode failed", "err", res.err)
				return
			}
			samples := int16ToFloat32(res.samples)
			f.deliver(capturedGeneration, chunk.ServerTimeUs, samples, format)
		})
		return nil

	default:
		return fmt.Errorf("decode: unsupported codec %q", format.Codec)
	}
}

func (f *FrontEnd) deliver(capturedGeneration uint32, serverTimeUs int64, samples []float32, format state.StreamFormat) {
	if f.currentGeneration.Load() != capturedGeneration {
		return
	}
	f.events <- DecodedFrame{
		Generation:   capturedGeneration,
		ServerTimeUs: serverTimeUs,
		Samples:      samples,
		Channels:     format.ChannelCount,
		SampleRate:   format.SampleRate,
	}
}

func int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / 32768.0
	}
	return out
}
