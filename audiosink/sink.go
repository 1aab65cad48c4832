// Package audiosink specifies the Scheduler's external collaborator: the
// host audio output. A real implementation is out of scope for this
// module (spec §1); this package only describes the interface and
// provides an in-memory fake for tests.
package audiosink

import "time"

// Source is one buffer of audio already handed to the sink for playback.
type Source interface {
	// Cancel stops this source immediately, if it hasn't already finished.
	Cancel()
}

// Sink is the host audio output the Scheduler dispatches to.
type Sink interface {
	// CurrentTime returns the sink's own clock, in seconds, monotonic
	// within a session.
	CurrentTime() float64
	// OutputLatency reports the sink's current output latency estimate
	// (base + output-buffer latency) as a time.Duration.
	OutputLatency() time.Duration
	// SetVolume sets output gain in [0,100].
	SetVolume(v int)
	// Schedule hands interleaved float32 samples to the sink for playback
	// starting at startAt (sink-clock seconds) at the given playback rate.
	Schedule(samples []float32, channels, sampleRate int, startAt float64, rate float64) Source
	// Close releases the sink.
	Close() error
}
