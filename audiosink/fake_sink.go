package audiosink

import (
	"sync"
	"time"
)

// FakeSink is an in-memory Sink for tests and the stand-in sink of the
// sendspin-client and sendspin-monitor commands. Its clock advances only when Advance is called, so tests
// get a deterministic "t_sink" without real-time sleeps.
type FakeSink struct {
	mu       sync.Mutex
	now      float64
	latency  time.Duration
	volume   int
	dispatch []dispatched
}

type dispatched struct {
	samples    []float32
	channels   int
	sampleRate int
	startAt    float64
	rate       float64
	canceled   bool
}

// NewFakeSink builds a FakeSink with a zeroed clock.
func NewFakeSink() *FakeSink {
	return &FakeSink{volume: 100}
}

func (s *FakeSink) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the fake clock forward by d.
func (s *FakeSink) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d.Seconds()
	s.mu.Unlock()
}

func (s *FakeSink) OutputLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

// SetLatency lets tests simulate a reported hardware output latency.
func (s *FakeSink) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

func (s *FakeSink) SetVolume(v int) {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

func (s *FakeSink) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *FakeSink) Schedule(samples []float32, channels, sampleRate int, startAt float64, rate float64) Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &dispatched{
		samples:    samples,
		channels:   channels,
		sampleRate: sampleRate,
		startAt:    startAt,
		rate:       rate,
	}
	s.dispatch = append(s.dispatch, *d)
	return &fakeSource{sink: s, index: len(s.dispatch) - 1}
}

// Dispatched returns a snapshot of everything scheduled so far, in order.
func (s *FakeSink) Dispatched() []struct {
	StartAt  float64
	Rate     float64
	Samples  int
	Canceled bool
} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]struct {
		StartAt  float64
		Rate     float64
		Samples  int
		Canceled bool
	}, len(s.dispatch))
	for i, d := range s.dispatch {
		out[i] = struct {
			StartAt  float64
			Rate     float64
			Samples  int
			Canceled bool
		}{StartAt: d.startAt, Rate: d.rate, Samples: len(d.samples), Canceled: d.canceled}
	}
	return out
}

func (s *FakeSink) Close() error { return nil }

type fakeSource struct {
	sink  *FakeSink
	index int
}

func (f *fakeSource) Cancel() {
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if f.index >= 0 && f.index < len(f.sink.dispatch) {
		f.sink.dispatch[f.index].canceled = true
	}
}
