// Package timefilter implements the recursive offset/drift estimator that
// fuses NTP-style four-timestamp exchanges into a single estimate of the
// clock relationship between the local monotonic clock and the server
// clock, with an uncertainty bound.
package timefilter

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// ErrOutlier is returned (and the measurement ignored) when a Sample's
// MaxErrorUs exceeds the configured outlier cap or its innovation is too
// large relative to current uncertainty.
var ErrOutlier = errors.New("timefilter: measurement rejected as outlier")

// Sample is one NTP four-timestamp exchange reduced to the three values the
// filter needs.
type Sample struct {
	// MeasurementUs is the symmetric NTP offset estimate:
	// ((T2-T1)+(T3-T4))/2, in microseconds.
	MeasurementUs float64
	// MaxErrorUs is half the round-trip residual: ((T4-T1)-(T3-T2))/2, a
	// non-negative upper bound on measurement error, in microseconds.
	MaxErrorUs float64
	// TLocalNowUs is T4, the local monotonic time the reply was observed,
	// in microseconds.
	TLocalNowUs int64
}

// Config tunes the recursive estimator. Zero-value fields are replaced by
// DefaultConfig's values in New.
type Config struct {
	// FilterConfidenceUs is the error bound below which IsSynchronized can
	// become true and below which the Scheduler's "wait" correction tier
	// releases frames.
	FilterConfidenceUs float64
	// OutlierCapUs rejects any sample whose MaxErrorUs exceeds this bound.
	OutlierCapUs float64
	// InnovationRejectMultiple rejects a sample whose |innovation| exceeds
	// this many multiples of the current estimated error.
	InnovationRejectMultiple float64
	// ProcessNoisePerSecondUs2 inflates the offset variance each update,
	// proportional to the elapsed interval, modeling clock wander between
	// measurements.
	ProcessNoisePerSecondUs2 float64
	// DriftGain damps how fast the drift estimate reacts to each
	// innovation; convergence is deliberately slow (tens of updates).
	DriftGain float64
	// DriftMinIntervalUs avoids re-estimating drift over too short an
	// interval, where the update would be dominated by measurement noise.
	DriftMinIntervalUs float64
	// JitterWindow is how many recent accepted MaxErrorUs samples are kept
	// to judge short-term link jitter (see RecentJitterUs).
	JitterWindow int
}

// DefaultConfig returns the constants this implementation converged on to
// satisfy the acceptance criteria in spec §9: the second measurement flips
// IsSynchronized, steady-state error on a well-behaved LAN shrinks to tens
// to low-hundreds of microseconds, and large outliers don't snap the
// offset.
func DefaultConfig() Config {
	return Config{
		FilterConfidenceUs:       50_000,
		OutlierCapUs:             200_000,
		InnovationRejectMultiple: 4,
		ProcessNoisePerSecondUs2: 4,
		DriftGain:                0.02,
		DriftMinIntervalUs:       500_000,
		JitterWindow:             32,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FilterConfidenceUs <= 0 {
		c.FilterConfidenceUs = d.FilterConfidenceUs
	}
	if c.OutlierCapUs <= 0 {
		c.OutlierCapUs = d.OutlierCapUs
	}
	if c.InnovationRejectMultiple <= 0 {
		c.InnovationRejectMultiple = d.InnovationRejectMultiple
	}
	if c.ProcessNoisePerSecondUs2 <= 0 {
		c.ProcessNoisePerSecondUs2 = d.ProcessNoisePerSecondUs2
	}
	if c.DriftGain <= 0 {
		c.DriftGain = d.DriftGain
	}
	if c.DriftMinIntervalUs <= 0 {
		c.DriftMinIntervalUs = d.DriftMinIntervalUs
	}
	if c.JitterWindow <= 0 {
		c.JitterWindow = d.JitterWindow
	}
	return c
}

// Filter is a single-instance-per-session recursive estimator of
// (offset, drift, error) between the local and server clocks.
//
// Safe for concurrent use: a diagnostic monitor may read Snapshot while the
// session's event loop feeds it measurements.
type Filter struct {
	cfg Config

	mu               sync.Mutex
	initialized      bool
	synchronized     bool
	measurementCount int

	offsetUs float64 // T_server - T_local at anchorUs
	drift    float64 // d(offset)/d(T_local), dimensionless
	varUs2   float64 // variance of offsetUs (error^2)
	anchorUs int64

	recentMaxErrorUs []float64 // ring of accepted MaxErrorUs, for jitter estimation
}

// New constructs a Filter. Passing a zero Config fills in DefaultConfig.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg.withDefaults()}
}

// Reset discards all estimator state, per spec §4.A failure semantics: a
// reconnect or explicit reset clears everything, no exceptions.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	f.synchronized = false
	f.measurementCount = 0
	f.offsetUs = 0
	f.drift = 0
	f.varUs2 = 0
	f.anchorUs = 0
	f.recentMaxErrorUs = f.recentMaxErrorUs[:0]
}

// Update absorbs one NTP measurement. Returns ErrOutlier (state untouched)
// if the sample is rejected as a plausibility or innovation outlier.
func (f *Filter) Update(s Sample) error {
	if s.MaxErrorUs < 0 {
		return fmt.Errorf("timefilter: negative max_error %f", s.MaxErrorUs)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.MaxErrorUs > f.cfg.OutlierCapUs {
		return ErrOutlier
	}

	if !f.initialized {
		f.offsetUs = s.MeasurementUs
		f.drift = 0
		f.varUs2 = s.MaxErrorUs * s.MaxErrorUs
		f.anchorUs = s.TLocalNowUs
		f.initialized = true
		f.measurementCount = 1
		f.recordJitter(s.MaxErrorUs)
		return nil
	}

	dtUs := float64(s.TLocalNowUs - f.anchorUs)
	if dtUs < 0 {
		// Local clock must be monotone; treat a regression defensively as
		// a zero-interval update rather than let drift blow up.
		dtUs = 0
	}
	dtSeconds := dtUs / 1e6

	predictedOffset := f.offsetUs + f.drift*dtUs
	processNoise := f.cfg.ProcessNoisePerSecondUs2 * dtSeconds
	priorVar := f.varUs2 + processNoise

	innovation := s.MeasurementUs - predictedOffset
	rejectBound := f.cfg.InnovationRejectMultiple * math.Sqrt(priorVar)
	if f.measurementCount >= 2 && math.Abs(innovation) > rejectBound && rejectBound > 0 {
		return ErrOutlier
	}

	measurementVar := s.MaxErrorUs * s.MaxErrorUs
	if measurementVar <= 0 {
		measurementVar = 1
	}
	gain := priorVar / (priorVar + measurementVar)

	f.offsetUs = predictedOffset + gain*innovation
	f.varUs2 = (1 - gain) * priorVar

	if dtUs >= f.cfg.DriftMinIntervalUs {
		observedDrift := innovation / dtUs
		f.drift += f.cfg.DriftGain * (observedDrift - f.drift)
	}

	f.anchorUs = s.TLocalNowUs
	f.measurementCount++
	f.recordJitter(s.MaxErrorUs)

	if !f.synchronized && f.measurementCount >= 2 && s.MaxErrorUs <= f.cfg.FilterConfidenceUs {
		f.synchronized = true
	}
	return nil
}

func (f *Filter) recordJitter(maxErrorUs float64) {
	f.recentMaxErrorUs = append(f.recentMaxErrorUs, maxErrorUs)
	if len(f.recentMaxErrorUs) > f.cfg.JitterWindow {
		f.recentMaxErrorUs = f.recentMaxErrorUs[len(f.recentMaxErrorUs)-f.cfg.JitterWindow:]
	}
}

// RecentJitterUs reports the standard deviation of recently accepted
// MaxErrorUs samples, a robust indicator of link jitter independent of the
// estimator's own confidence. Returns 0 until at least two samples have
// been recorded.
func (f *Filter) RecentJitterUs() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recentMaxErrorUs) < 2 {
		return 0
	}
	return stat.StdDev(f.recentMaxErrorUs, nil)
}

// ComputeClientTime converts a server timestamp to the corresponding local
// time, given the current wall time tLocalNowUs. Monotone increasing in
// tServerUs for fixed filter state (P2).
func (f *Filter) ComputeClientTime(tServerUs int64, tLocalNowUs int64) int64 {
	f.mu.Lock()
	offset := f.offsetUs
	drift := f.drift
	anchor := f.anchorUs
	f.mu.Unlock()

	correction := offset + drift*float64(tLocalNowUs-anchor)
	return tServerUs - int64(math.Round(correction))
}

// IsSynchronized reports whether, since the last Reset, a second or later
// measurement has been absorbed whose MaxErrorUs was within the confidence
// bound. Once true it stays true until Reset.
func (f *Filter) IsSynchronized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synchronized
}

// ErrorUs returns the current 1-sigma style uncertainty of the offset
// estimate, in microseconds.
func (f *Filter) ErrorUs() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return math.Sqrt(f.varUs2)
}

// FilterConfidenceUs returns the configured error bound this Filter was
// built with, so callers (the Scheduler's "wait" correction tier) can
// compare it against ErrorUs without duplicating the constant.
func (f *Filter) FilterConfidenceUs() float64 {
	return f.cfg.FilterConfidenceUs
}

// Snapshot is a point-in-time read of filter state, for diagnostics.
type Snapshot struct {
	Initialized      bool
	Synchronized     bool
	MeasurementCount int
	OffsetUs         float64
	Drift            float64
	ErrorUs          float64
	RecentJitterUs   float64
}

// Snapshot returns the current estimator state for monitoring/logging.
func (f *Filter) Snapshot() Snapshot {
	f.mu.Lock()
	snap := Snapshot{
		Initialized:      f.initialized,
		Synchronized:     f.synchronized,
		MeasurementCount: f.measurementCount,
		OffsetUs:         f.offsetUs,
		Drift:            f.drift,
		ErrorUs:          math.Sqrt(f.varUs2),
	}
	f.mu.Unlock()
	snap.RecentJitterUs = f.RecentJitterUs()
	return snap
}
