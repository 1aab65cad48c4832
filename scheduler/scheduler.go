// Package scheduler implements the Scheduler (component E): it drains
// decoded frames, aligns them to the audio sink's clock using the Time
// Filter, and applies one of four correction tiers to keep playback in
// sync without audible glitches when avoidable.
package scheduler

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/frostbyte73/core"

	"github.com/sendspin-audio/sendspin-go/audiosink"
	"github.com/sendspin-audio/sendspin-go/decode"
	"github.com/sendspin-audio/sendspin-go/state"
	"github.com/sendspin-audio/sendspin-go/timefilter"
)

const (
	headroomUs       = 200_000
	gapThresholdUs   = 100_000
	debounceInterval = 50 * time.Millisecond
)

// Config bounds scheduling behavior (spec §6's Core configuration table).
type Config struct {
	Mode                         Mode
	SyncDelayUs                  int64
	UseOutputLatencyCompensation bool
	ResamplerQuality             int
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeSync
	}
	return c
}

type scheduledSource struct {
	source  audiosink.Source
	endTime float64
}

// Scheduler owns the frame queue and scheduled-source list exclusively;
// nothing else mutates them (spec §5 Ownership).
type Scheduler struct {
	cfg    Config
	sink   audiosink.Sink
	filter *timefilter.Filter
	store  *state.Store
	logger *slog.Logger
	resample *resampleStage

	mu                       sync.Mutex
	queue                    frameQueue
	nextPlaybackTime         float64
	lastScheduledServerEndUs int64
	smoothedSyncErrorMs      float64
	resyncCount              int
	smoothedOutputLatencyUs  float64
	sources                  []scheduledSource
	debounceTimer            *time.Timer

	closed core.Fuse
}

// New builds a Scheduler. sink, filter, and store must be non-nil.
func New(sink audiosink.Sink, filter *timefilter.Filter, store *state.Store, cfg Config, logger *slog.Logger) *Scheduler {
	if sink == nil || filter == nil || store == nil {
		panic("scheduler: New requires non-nil sink, filter, and store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		sink:     sink,
		filter:   filter,
		store:    store,
		logger:   logger.With("component", "scheduler"),
		resample: newResampleStage(0, cfg.ResamplerQuality),
		closed:   core.NewFuse(),
	}
}

// Enqueue adds a decoded frame to the queue and (re)arms the 50ms debounce
// timer, restarting it if a pass is already pending (spec §4.D/§4.E).
func (s *Scheduler) Enqueue(f decode.DecodedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.IsBroken() {
		return
	}
	heap.Push(&s.queue, f)
	s.armDebounceLocked()
}

func (s *Scheduler) armDebounceLocked() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(debounceInterval, s.RunPass)
}

// RunPass executes one scheduling pass (spec §4.E). It is safe to call
// directly (e.g. immediately after a synchronous decode with no timer
// pending) as well as from the debounce timer.
func (s *Scheduler) RunPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.IsBroken() {
		return
	}

	if !s.filter.IsSynchronized() {
		return // precondition failed; frames remain queued
	}

	currentGeneration := s.store.StreamGeneration()
	frames := drainSorted(&s.queue, currentGeneration)
	if len(frames) == 0 {
		return
	}

	tSink := s.sink.CurrentTime()
	s.updateOutputLatencyLocked()

	for _, frame := range frames {
		s.scheduleOneLocked(frame, tSink)
	}
}

func (s *Scheduler) updateOutputLatencyLocked() {
	raw := float64(s.sink.OutputLatency().Microseconds())
	if s.smoothedOutputLatencyUs == 0 {
		s.smoothedOutputLatencyUs = raw
		return
	}
	s.smoothedOutputLatencyUs = 0.01*raw + 0.99*s.smoothedOutputLatencyUs
}

func (s *Scheduler) scheduleOneLocked(frame decode.DecodedFrame, tSink float64) {
	tLocalNowUs := nowUs()
	tServerClientUs := s.filter.ComputeClientTime(frame.ServerTimeUs, tLocalNowUs)
	deltaS := float64(tServerClientUs-tLocalNowUs) / 1e6

	syncDelayS := float64(s.cfg.SyncDelayUs) / 1e6
	latencyAdjS := 0.0
	if !s.cfg.UseOutputLatencyCompensation {
		latencyAdjS = -s.smoothedOutputLatencyUs / 1e6
	}
	targetSinkTime := tSink + deltaS + headroomUs/1e6 + syncDelayS + latencyAdjS

	var scheduleAt float64
	rate := 1.0
	samples := frame.Samples

	switch {
	case s.nextPlaybackTime == 0:
		scheduleAt = targetSinkTime

	case absI64(frame.ServerTimeUs-s.lastScheduledServerEndUs) > gapThresholdUs:
		s.cancelAtOrAfterLocked(targetSinkTime)
		s.resyncCount++
		scheduleAt = targetSinkTime

	default:
		syncErrorMs := (s.nextPlaybackTime - targetSinkTime) * 1000
		s.smoothedSyncErrorMs = 0.1*syncErrorMs + 0.9*s.smoothedSyncErrorMs

		t := thresholdsFor(s.cfg.Mode)
		filterConfident := s.filter.ErrorUs() <= s.filter.FilterConfidenceUs()
		tr := pickTier(t, s.smoothedSyncErrorMs, filterConfident)
		switch tr {
		case tierWait, tierDeadband:
			scheduleAt = s.nextPlaybackTime
		case tierSamples:
			scheduleAt = s.nextPlaybackTime
			if s.smoothedSyncErrorMs > 0 {
				samples = deleteSample(samples, frame.Channels)
			} else {
				samples = insertSample(samples, frame.Channels)
			}
		case tierRate:
			scheduleAt = s.nextPlaybackTime
			rate = rateFor(t, s.smoothedSyncErrorMs)
		case tierResync:
			s.cancelAtOrAfterLocked(targetSinkTime)
			s.smoothedSyncErrorMs = 0
			s.resyncCount++
			scheduleAt = targetSinkTime
		}
	}

	if scheduleAt < tSink {
		s.nextPlaybackTime = 0
		s.lastScheduledServerEndUs = 0
		return
	}

	resampled, outRate := s.resample.process(samples, frame.Channels, frame.SampleRate)
	source := s.sink.Schedule(resampled, frame.Channels, outRate, scheduleAt, rate)
	durationS := float64(frame.DurationUs()) / 1e6
	endTime := scheduleAt + durationS/rate
	s.sources = append(s.sources, scheduledSource{source: source, endTime: endTime})

	s.nextPlaybackTime = endTime
	s.lastScheduledServerEndUs = frame.ServerTimeUs + int64(durationS*1e6)
}

func (s *Scheduler) cancelAtOrAfterLocked(at float64) {
	kept := s.sources[:0]
	for _, sc := range s.sources {
		if sc.endTime >= at {
			sc.source.Cancel()
			continue
		}
		kept = append(kept, sc)
	}
	s.sources = kept
}

// Clear implements the seek/buffer-clear operation (spec §4.E): stop every
// scheduled source, discard the queue, reset anchors and the EMAs, and
// bump stream_generation. It does not touch format, is_playing, or the
// Time Filter.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.sources {
		sc.source.Cancel()
	}
	s.sources = nil
	s.queue = nil
	s.nextPlaybackTime = 0
	s.lastScheduledServerEndUs = 0
	s.smoothedSyncErrorMs = 0
	s.resyncCount = 0
	s.smoothedOutputLatencyUs = 0
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.store.ResetStreamAnchors()
}

// ResyncCount reports how many times a gap or tier-4 resync fired.
func (s *Scheduler) ResyncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncCount
}

// SmoothedOutputLatencyUs reports the current output-latency EMA, the one
// value spec §6 names as persisted across sessions.
func (s *Scheduler) SmoothedOutputLatencyUs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smoothedOutputLatencyUs
}

// SeedOutputLatencyUs primes the output-latency EMA from a prior session's
// persisted value. A zero/absent prior value is tolerated: the first live
// sample then seeds the EMA as usual (spec §6's "absence is tolerated").
func (s *Scheduler) SeedOutputLatencyUs(us float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smoothedOutputLatencyUs = us
}

// Close clears buffers, closes the sink, and releases any outstanding
// debounce timer (spec §4.E Close). Idempotent.
func (s *Scheduler) Close() error {
	var closeErr error
	s.closed.Once(func() {
		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		for _, sc := range s.sources {
			sc.source.Cancel()
		}
		s.sources = nil
		s.queue = nil
		s.mu.Unlock()
		closeErr = s.sink.Close()
	})
	return closeErr
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var nowUsFunc = func() int64 { return time.Now().UnixMicro() }

func nowUs() int64 { return nowUsFunc() }
