package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlacDecoder struct {
	calls [][]byte
}

func (f *fakeFlacDecoder) Decode(payload []byte) ([]float32, error) {
	f.calls = append(f.calls, append([]byte(nil), payload...))
	return make([]float32, len(payload)), nil
}

func TestFlacPath_PrimesFirstChunkOnly(t *testing.T) {
	fake := &fakeFlacDecoder{}
	p := newFlacPath(fake)
	header := []byte{0xAA, 0xBB}

	_, err := p.decode([]byte{1, 2, 3}, header)
	require.NoError(t, err)
	_, err = p.decode([]byte{4, 5}, header)
	require.NoError(t, err)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, []byte{0xAA, 0xBB, 1, 2, 3}, fake.calls[0])
	assert.Equal(t, []byte{4, 5}, fake.calls[1])
}

func TestFlacPath_ResetRePrimes(t *testing.T) {
	fake := &fakeFlacDecoder{}
	p := newFlacPath(fake)
	header := []byte{0xAA}

	_, _ = p.decode([]byte{1}, header)
	p.reset()
	_, _ = p.decode([]byte{2}, header)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, []byte{0xAA, 1}, fake.calls[0])
	assert.Equal(t, []byte{0xAA, 2}, fake.calls[1])
}

func TestFlacPath_NoDecoderConfigured(t *testing.T) {
	p := newFlacPath(nil)
	_, err := p.decode([]byte{1}, nil)
	assert.ErrorIs(t, err, ErrNoFlacDecoder)
}
