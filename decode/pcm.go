package decode

import (
	"encoding/binary"
	"fmt"
)

// decodePCM unpacks interleaved little-endian integer PCM into normalized
// float32 samples, per bit depth (spec §4.D). 16-bit is the common case;
// 24 and 32-bit are supported for hosts that stream higher-resolution PCM.
func decodePCM(payload []byte, bitDepth int) ([]float32, error) {
	switch bitDepth {
	case 0, 16:
		return decodePCM16(payload)
	case 24:
		return decodePCM24(payload)
	case 32:
		return decodePCM32(payload)
	default:
		return nil, fmt.Errorf("decode: unsupported pcm bit depth %d", bitDepth)
	}
}

func decodePCM16(payload []byte) ([]float32, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("decode: pcm16 payload length %d not a multiple of 2", len(payload))
	}
	n := len(payload) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

func decodePCM24(payload []byte) ([]float32, error) {
	if len(payload)%3 != 0 {
		return nil, fmt.Errorf("decode: pcm24 payload length %d not a multiple of 3", len(payload))
	}
	n := len(payload) / 3
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		b := payload[i*3 : i*3+3]
		raw := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if raw&0x800000 != 0 {
			raw |= -1 << 24 // sign-extend 24 -> 32 bits
		}
		out[i] = float32(raw) / 8388608.0
	}
	return out, nil
}

func decodePCM32(payload []byte) ([]float32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("decode: pcm32 payload length %d not a multiple of 4", len(payload))
	}
	n := len(payload) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int32(binary.LittleEndian.Uint32(payload[i*4 : i*4+4]))
		out[i] = float32(v) / 2147483648.0
	}
	return out, nil
}
