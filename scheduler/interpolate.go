package scheduler

// insertSample inserts one interpolated sample at the start of the first
// channel frame when the renderer is ahead and needs to be held back by
// one sample (spec §4.E): [A, B, C, ...] -> [A, (A+B)/2, B, C, ...].
// Operates on a fresh copy; samples is interleaved by channels.
func insertSample(samples []float32, channels int) []float32 {
	if channels <= 0 || len(samples) < 2*channels {
		return append([]float32(nil), samples...)
	}
	out := make([]float32, 0, len(samples)+channels)
	first := samples[:channels]
	second := samples[channels : 2*channels]
	mid := make([]float32, channels)
	for c := 0; c < channels; c++ {
		mid[c] = (first[c] + second[c]) / 2
	}
	out = append(out, first...)
	out = append(out, mid...)
	out = append(out, samples[channels:]...)
	return out
}

// deleteSample deletes one sample at the end of the last channel frame
// when the renderer is behind (spec §4.E): [..., Y, Z] -> [..., (Y+Z)/2].
func deleteSample(samples []float32, channels int) []float32 {
	if channels <= 0 || len(samples) < 2*channels {
		return append([]float32(nil), samples...)
	}
	n := len(samples)
	y := samples[n-2*channels : n-channels]
	z := samples[n-channels:]
	merged := make([]float32, channels)
	for c := 0; c < channels; c++ {
		merged[c] = (y[c] + z[c]) / 2
	}
	out := make([]float32, 0, n-channels)
	out = append(out, samples[:n-2*channels]...)
	out = append(out, merged...)
	return out
}
