package audio

import "testing"

func TestSampleToInt16_Saturates(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0.0, 0},
		{1.0, 32767},
		{-1.0, -32768},
		{1.5, 32767},
		{-1.5, -32768},
		{0.5, 16383},
		{-0.5, -16384},
	}
	for _, tt := range tests {
		if got := SampleToInt16(tt.in); got != tt.want {
			t.Errorf("SampleToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSampleToInt16_RangeStaysValid(t *testing.T) {
	for i := -200; i <= 200; i++ {
		s := float32(i) / 200
		got := int32(SampleToInt16(s))
		if got < -32768 || got > 32767 {
			t.Fatalf("SampleToInt16(%v) = %d, outside int16 range", s, got)
		}
	}
}

func TestInt16Bytes_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345}
	got := BytesToInt16(Int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], in[i])
		}
	}
}

func TestFrameToInt16_Length(t *testing.T) {
	frame := make([]float32, FrameSize)
	if got := len(FrameToInt16(frame)); got != FrameSize {
		t.Fatalf("len = %d, want %d", got, FrameSize)
	}
}
