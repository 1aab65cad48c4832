package scheduler

import resampler "github.com/tphakala/go-audio-resampler"

// resampleStage adapts decoded samples to a fixed output sample rate. It is
// a no-op when no output rate is set or the rates already match; New builds
// it with no output rate, so frames reach the sink at their decoded rate.
type resampleStage struct {
	quality    int
	sampleRate int
}

func newResampleStage(sinkSampleRate, quality int) *resampleStage {
	return &resampleStage{quality: quality, sampleRate: sinkSampleRate}
}

func (r *resampleStage) process(samples []float32, channels, fromRate int) ([]float32, int) {
	if r.sampleRate <= 0 || fromRate <= 0 || fromRate == r.sampleRate {
		return samples, fromRate
	}
	out, err := resampler.Resample(samples, channels, fromRate, r.sampleRate, r.quality)
	if err != nil {
		return samples, fromRate
	}
	return out, r.sampleRate
}
