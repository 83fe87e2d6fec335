package audio

import "encoding/binary"

// Resample converts PCM16 mono samples from srcRate to dstRate using linear
// interpolation. When the rates match the input is returned unchanged.
func Resample(src []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(src) == 0 {
		return src
	}

	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(src))*ratio + 0.5)
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(src[idx])
		b := float64(src[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// SamplesToBytes encodes samples as little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples decodes little-endian PCM16 bytes into samples. A trailing
// odd byte is dropped.
func BytesToSamples(b []byte) []int16 {
	n := len(b) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}
