package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767}
	wav := EncodeWAV(samples, 24000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("unexpected size: %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if string(wav[12:16]) != "fmt " {
		t.Fatal("missing fmt chunk")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 24000 {
		t.Errorf("sample rate = %d, want 24000", rate)
	}
	if channels := binary.LittleEndian.Uint16(wav[22:24]); channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if dataSize := binary.LittleEndian.Uint32(wav[40:44]); dataSize != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", dataSize, len(samples)*2)
	}
	if first := int16(binary.LittleEndian.Uint16(wav[46:48])); first != 1000 {
		t.Errorf("second sample = %d, want 1000", first)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(24000)
	r.Write(make(Frame, 24000))
	r.Write(make(Frame, 12000))

	if r.Len() != 36000 {
		t.Fatalf("Len = %d, want 36000", r.Len())
	}
	if d := r.Duration(); d != 1.5 {
		t.Fatalf("Duration = %f, want 1.5", d)
	}
	wav := r.WAV()
	if len(wav) != 44+36000*2 {
		t.Fatalf("unexpected wav size: %d", len(wav))
	}
}
