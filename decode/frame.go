// Package decode implements the Decode Front-end (spec §4.D): it turns
// binary audio frames into normalized float32 sample buffers, generation-
// stamped so the Scheduler can discard stale work after a seek.
package decode

// DecodedFrame is the Decode Front-end's sole output shape — whether it
// came from a synchronous codec path (pcm, flac, the software Opus
// fallback) or an async native-decoder callback, it is delivered on the
// same channel so the Scheduler has exactly one input (spec §9 redesign
// note).
type DecodedFrame struct {
	Generation   uint32
	ServerTimeUs int64
	Samples      []float32 // interleaved
	Channels     int
	SampleRate   int
}

// DurationUs is the frame's playback duration in microseconds.
func (f DecodedFrame) DurationUs() int64 {
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return 0
	}
	frames := len(f.Samples) / f.Channels
	return int64(frames) * 1_000_000 / int64(f.SampleRate)
}
