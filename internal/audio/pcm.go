package audio

import "encoding/binary"

// FrameSize is the number of float32 samples processed per bridge frame.
// 4096 samples at typical track rates keeps per-frame overhead low without
// adding noticeable latency.
const FrameSize = 4096

// SampleToInt16 converts one float32 sample in [-1, 1] to a signed 16-bit
// sample using saturating linear scaling. Out-of-range input is clamped
// before conversion.
func SampleToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// FrameToInt16 converts a frame of float32 samples to int16 samples.
func FrameToInt16(frame []float32) []int16 {
	out := make([]int16, len(frame))
	for i, s := range frame {
		out[i] = SampleToInt16(s)
	}
	return out
}

// Int16ToBytes encodes int16 samples as little-endian PCM bytes, the wire
// format expected by the avatar renderer's audio ingestion endpoint.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian PCM bytes back into int16 samples.
// Trailing odd bytes are ignored.
func BytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
