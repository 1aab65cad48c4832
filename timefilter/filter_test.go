package timefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFilter_UninitializedUsesFirstSampleVerbatim(t *testing.T) {
	f := New(Config{})
	require.NoError(t, f.Update(Sample{MeasurementUs: 1500, MaxErrorUs: 200, TLocalNowUs: 1_000_000}))
	snap := f.Snapshot()
	assert.Equal(t, 1, snap.MeasurementCount)
	assert.False(t, snap.Synchronized, "one sample must not synchronize")
	assert.InDelta(t, 1500, snap.OffsetUs, 0.001)
}

func TestFilter_SecondGoodMeasurementSynchronizes(t *testing.T) {
	f := New(Config{})
	require.NoError(t, f.Update(Sample{MeasurementUs: 1500, MaxErrorUs: 200, TLocalNowUs: 1_000_000}))
	assert.False(t, f.IsSynchronized())
	require.NoError(t, f.Update(Sample{MeasurementUs: 1510, MaxErrorUs: 180, TLocalNowUs: 6_000_000}))
	assert.True(t, f.IsSynchronized())
}

func TestFilter_OutlierCapRejectsWithoutMutatingState(t *testing.T) {
	f := New(Config{})
	require.NoError(t, f.Update(Sample{MeasurementUs: 1000, MaxErrorUs: 100, TLocalNowUs: 1_000_000}))
	before := f.Snapshot()

	err := f.Update(Sample{MeasurementUs: 1000, MaxErrorUs: 1_000_000, TLocalNowUs: 2_000_000})
	assert.ErrorIs(t, err, ErrOutlier)

	after := f.Snapshot()
	assert.Equal(t, before, after)
}

func TestFilter_LargeInnovationOutlierDoesNotSnapOffset(t *testing.T) {
	f := New(Config{})
	// Converge on a stable ~1ms offset over several good measurements.
	local := int64(0)
	for i := 0; i < 10; i++ {
		local += 5_000_000
		require.NoError(t, f.Update(Sample{MeasurementUs: 1000, MaxErrorUs: 50, TLocalNowUs: local}))
	}
	settled := f.Snapshot()
	require.True(t, settled.Synchronized)

	// A single wild-but-plausible-max-error measurement should be rejected
	// as an innovation outlier and leave the offset essentially unchanged.
	local += 5_000_000
	err := f.Update(Sample{MeasurementUs: 500_000, MaxErrorUs: 40, TLocalNowUs: local})
	assert.ErrorIs(t, err, ErrOutlier)

	after := f.Snapshot()
	assert.InDelta(t, settled.OffsetUs, after.OffsetUs, 5)
}

func TestFilter_Reset(t *testing.T) {
	f := New(Config{})
	require.NoError(t, f.Update(Sample{MeasurementUs: 1000, MaxErrorUs: 50, TLocalNowUs: 1_000_000}))
	f.Reset()
	snap := f.Snapshot()
	assert.False(t, snap.Initialized)
	assert.False(t, snap.Synchronized)
	assert.Equal(t, 0, snap.MeasurementCount)
}

// TestFilter_ComputeClientTimeMonotone is property P2: compute_client_time
// is monotone increasing in t_server for any fixed filter state.
func TestFilter_ComputeClientTimeMonotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := New(Config{})
		offset := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "measurement")
		maxErr := rapid.Float64Range(1, 5000).Draw(t, "max_error")
		require.NoError(t, f.Update(Sample{MeasurementUs: float64(offset), MaxErrorUs: maxErr, TLocalNowUs: 0}))

		tLocalNow := rapid.Int64Range(0, 10_000_000).Draw(t, "t_local_now")
		a := rapid.Int64Range(-10_000_000, 10_000_000).Draw(t, "t_server_a")
		delta := rapid.Int64Range(0, 10_000_000).Draw(t, "delta")
		b := a + delta

		clientA := f.ComputeClientTime(a, tLocalNow)
		clientB := f.ComputeClientTime(b, tLocalNow)
		assert.LessOrEqual(t, clientA, clientB)
	})
}

func TestFilter_ConvergesToLowErrorOnStableLAN(t *testing.T) {
	f := New(Config{})
	local := int64(0)
	for i := 0; i < 50; i++ {
		local += 5_000_000
		require.NoError(t, f.Update(Sample{MeasurementUs: 2000, MaxErrorUs: 300, TLocalNowUs: local}))
	}
	snap := f.Snapshot()
	assert.True(t, snap.Synchronized)
	assert.Less(t, snap.ErrorUs, 300.0, "error should have shrunk well below raw measurement noise")
}
