package transport

import (
	"encoding/binary"
	"fmt"
)

// Role distinguishes who a binary frame's tag addresses.
type Role int

const (
	RolePlayer Role = 1
	RoleGroup  Role = 2
)

// AudioChunk is the parsed form of a binary audio frame (spec §6): byte 0 is
// a tag whose high six bits identify the role and whose low two bits are a
// slot index, bytes 1..9 are a big-endian server timestamp in microseconds,
// and the remainder is the codec payload.
type AudioChunk struct {
	Role           Role
	Slot           uint8
	ServerTimeUs   int64
	Payload        []byte
}

// ParseAudioChunk decodes a binary frame payload into an AudioChunk. It
// rejects any role other than the player role; other roles are reserved for
// future frame kinds this client does not yet speak.
func ParseAudioChunk(data []byte) (AudioChunk, error) {
	if len(data) < 9 {
		return AudioChunk{}, fmt.Errorf("transport: binary frame too short (%d bytes)", len(data))
	}
	tag := data[0]
	role := Role(tag >> 2)
	slot := tag & 0x3
	if role != RolePlayer {
		return AudioChunk{}, fmt.Errorf("transport: unsupported binary frame role %d", role)
	}
	ts := int64(binary.BigEndian.Uint64(data[1:9]))
	payload := data[9:]
	return AudioChunk{
		Role:         RolePlayer,
		Slot:         slot,
		ServerTimeUs: ts,
		Payload:      payload,
	}, nil
}

// EncodeAudioChunk is the inverse of ParseAudioChunk, used by tests and by
// any loopback/diagnostic tooling that needs to synthesize frames.
func EncodeAudioChunk(c AudioChunk) []byte {
	out := make([]byte, 9+len(c.Payload))
	out[0] = byte(RolePlayer)<<2 | (c.Slot & 0x3)
	binary.BigEndian.PutUint64(out[1:9], uint64(c.ServerTimeUs))
	copy(out[9:], c.Payload)
	return out
}
