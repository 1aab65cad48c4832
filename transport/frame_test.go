package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAudioChunkRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := AudioChunk{
			Slot:         uint8(rapid.IntRange(0, 3).Draw(t, "slot")),
			ServerTimeUs: rapid.Int64Range(0, 1<<40).Draw(t, "ts"),
			Payload:      []byte(rapid.StringN(0, 64, -1).Draw(t, "payload")),
		}
		encoded := EncodeAudioChunk(in)
		out, err := ParseAudioChunk(encoded)
		require.NoError(t, err)
		assert.Equal(t, in.Slot, out.Slot)
		assert.Equal(t, in.ServerTimeUs, out.ServerTimeUs)
		assert.Equal(t, in.Payload, out.Payload)
	})
}

func TestParseAudioChunk_AcceptsWireSpecTagByte(t *testing.T) {
	// spec: tag byte 4 = player role (1), slot 0, audio chunk.
	frame := append([]byte{0x04, 0, 0, 0, 0, 0, 0, 0, 1}, []byte("payload")...)
	chunk, err := ParseAudioChunk(frame)
	require.NoError(t, err)
	assert.Equal(t, RolePlayer, chunk.Role)
	assert.Equal(t, uint8(0), chunk.Slot)
	assert.Equal(t, int64(1), chunk.ServerTimeUs)
	assert.Equal(t, []byte("payload"), chunk.Payload)
}

func TestParseAudioChunk_RejectsShortFrame(t *testing.T) {
	_, err := ParseAudioChunk([]byte{0x10, 0x00})
	assert.Error(t, err)
}

func TestParseAudioChunk_RejectsUnknownTag(t *testing.T) {
	frame := EncodeAudioChunk(AudioChunk{Payload: []byte("x")})
	frame[0] = 0x03 << 2 // role 3 is not RolePlayer (1)
	_, err := ParseAudioChunk(frame)
	assert.Error(t, err)
}
