package decode

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendspin-audio/sendspin-go/state"
	"github.com/sendspin-audio/sendspin-go/transport"
)

func TestFrontEnd_DeliversPCMFrame(t *testing.T) {
	events := make(chan DecodedFrame, 4)
	fe := NewFrontEnd(events, nil, nil)
	fe.SetFormat(state.StreamFormat{Codec: "pcm", SampleRate: 44100, ChannelCount: 2, BitDepth: 16})
	fe.SetGeneration(1)

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], 1000)
	binary.LittleEndian.PutUint16(payload[2:4], 2000)

	err := fe.HandleChunk(transport.AudioChunk{ServerTimeUs: 55, Payload: payload}, 1)
	require.NoError(t, err)

	select {
	case f := <-events:
		assert.Equal(t, uint32(1), f.Generation)
		assert.Equal(t, int64(55), f.ServerTimeUs)
		assert.Len(t, f.Samples, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a decoded frame")
	}
}

// TestFrontEnd_DropsStaleGeneration is property P3.
func TestFrontEnd_DropsStaleGeneration(t *testing.T) {
	events := make(chan DecodedFrame, 4)
	fe := NewFrontEnd(events, nil, nil)
	fe.SetFormat(state.StreamFormat{Codec: "pcm", SampleRate: 44100, ChannelCount: 1, BitDepth: 16})
	fe.SetGeneration(1)

	payload := make([]byte, 2)
	// Simulate a frame whose generation was captured before decode started,
	// but the live generation has since moved on (e.g. a seek raced the
	// decode) by the time HandleChunk's decode path completes and delivers.
	fe.SetGeneration(2)
	err := fe.HandleChunk(transport.AudioChunk{ServerTimeUs: 10, Payload: payload}, 1)
	require.NoError(t, err)

	select {
	case f := <-events:
		t.Fatalf("expected no frame from a stale generation, got %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFrontEnd_UnknownCodecErrors(t *testing.T) {
	events := make(chan DecodedFrame, 1)
	fe := NewFrontEnd(events, nil, nil)
	fe.SetFormat(state.StreamFormat{Codec: "mp3"})
	err := fe.HandleChunk(transport.AudioChunk{Payload: []byte{1, 2}}, 0)
	assert.Error(t, err)
}
