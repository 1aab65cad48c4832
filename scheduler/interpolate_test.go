package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestInsertSample_Mono(t *testing.T) {
	in := []float32{1, 3}
	out := insertSample(in, 1)
	assert.Equal(t, []float32{1, 2, 3}, out)
	// original must be untouched.
	assert.Equal(t, []float32{1, 3}, in)
}

func TestDeleteSample_Mono(t *testing.T) {
	in := []float32{1, 2, 4}
	out := deleteSample(in, 1)
	assert.Equal(t, []float32{1, 3}, out)
	assert.Equal(t, []float32{1, 2, 4}, in)
}

func TestInsertSample_Stereo(t *testing.T) {
	in := []float32{0, 10, 2, 10}
	out := insertSample(in, 2)
	assert.Equal(t, []float32{0, 10, 1, 10, 2, 10}, out)
}

func TestInterpolate_ShortFramesPassThroughUnchanged(t *testing.T) {
	in := []float32{1}
	assert.Equal(t, in, insertSample(in, 1))
	assert.Equal(t, in, deleteSample(in, 1))
}

func TestInterpolate_NeverMutatesInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		channels := rapid.IntRange(1, 2).Draw(t, "channels")
		n := rapid.IntRange(0, 20).Draw(t, "frames")
		in := make([]float32, n*channels)
		for i := range in {
			in[i] = float32(rapid.IntRange(-100, 100).Draw(t, "v"))
		}
		before := append([]float32(nil), in...)
		_ = insertSample(in, channels)
		_ = deleteSample(in, channels)
		assert.Equal(t, before, in)
	})
}
