package audio

import "testing"

func TestResamplePassThrough(t *testing.T) {
	src := []int16{1, 2, 3, 4}
	out := Resample(src, 24000, 24000)
	if len(out) != len(src) {
		t.Fatalf("expected pass-through length %d, got %d", len(src), len(out))
	}
	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("sample %d changed: %d != %d", i, out[i], src[i])
		}
	}
}

func TestResampleDownsampleLength(t *testing.T) {
	src := make([]int16, 4800) // 100ms at 48kHz
	out := Resample(src, 48000, 24000)
	if len(out) != 2400 {
		t.Fatalf("expected 2400 samples, got %d", len(out))
	}
}

func TestResampleUpsampleLength(t *testing.T) {
	src := make([]int16, 1600) // 100ms at 16kHz
	out := Resample(src, 16000, 24000)
	if len(out) != 2400 {
		t.Fatalf("expected 2400 samples, got %d", len(out))
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Doubling the rate of a ramp should produce interpolated midpoints.
	src := []int16{0, 100, 200, 300}
	out := Resample(src, 12000, 24000)
	if len(out) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(out))
	}
	if out[0] != 0 {
		t.Errorf("expected first sample 0, got %d", out[0])
	}
	if out[1] != 50 {
		t.Errorf("expected interpolated sample 50, got %d", out[1])
	}
	if out[2] != 100 {
		t.Errorf("expected original sample 100, got %d", out[2])
	}
}

func TestResampleEmpty(t *testing.T) {
	if out := Resample(nil, 48000, 24000); len(out) != 0 {
		t.Fatalf("expected empty output, got %d samples", len(out))
	}
}

func TestSampleByteRoundTrip(t *testing.T) {
	src := []int16{0, 1, -1, 32767, -32768}
	got := BytesToSamples(SamplesToBytes(src))
	if len(got) != len(src) {
		t.Fatalf("length mismatch: %d != %d", len(got), len(src))
	}
	for i := range src {
		if got[i] != src[i] {
			t.Errorf("sample %d: %d != %d", i, got[i], src[i])
		}
	}
}

func TestBytesToSamplesOddLength(t *testing.T) {
	if got := BytesToSamples([]byte{0x01, 0x00, 0xff}); len(got) != 1 {
		t.Fatalf("expected trailing byte dropped, got %d samples", len(got))
	}
}
