package decode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePCM16_FullScale(t *testing.T) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(int16(32767)))
	binary.LittleEndian.PutUint16(payload[2:4], uint16(int16(-32768)))
	out, err := decodePCM(payload, 16)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, out[0], 0.001)
	assert.InDelta(t, -1.0, out[1], 0.001)
}

func TestDecodePCM24_SignExtends(t *testing.T) {
	// -1 in 24-bit two's complement is 0xFFFFFF little-endian.
	payload := []byte{0xFF, 0xFF, 0xFF}
	out, err := decodePCM(payload, 24)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, -1.0/8388608.0, out[0], 1e-9)
}

func TestDecodePCM32_FullScale(t *testing.T) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(int32(2147483647)))
	out, err := decodePCM(payload, 32)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0], 1e-6)
}

func TestDecodePCM_RejectsMisalignedPayload(t *testing.T) {
	_, err := decodePCM([]byte{0x01}, 16)
	assert.Error(t, err)
}

func TestDecodePCM_RejectsUnsupportedBitDepth(t *testing.T) {
	_, err := decodePCM([]byte{0x01, 0x02}, 12)
	assert.Error(t, err)
}
