package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RMS returns the root-mean-square level of samples in the range [0, 1].
// Returns 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DecodeFloat32LE interprets b as little-endian IEEE-754 float32 samples.
func DecodeFloat32LE(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("audio: float32 frame length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// Int16ToMono converts interleaved 16-bit PCM to mono float32 samples in
// [-1, 1] by averaging channels per frame.
func Int16ToMono(pcm []int16, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(pcm))
		for i, s := range pcm {
			out[i] = float32(s) / 32768.0
		}
		return out
	}
	frames := len(pcm) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(pcm[i*channels+ch]) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts mono samples from one rate to another by linear
// interpolation. Equal rates return the input unchanged.
func Resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	for i := range n {
		pos := float64(i) * step
		j := int(pos)
		frac := float32(pos - float64(j))
		if j+1 < len(samples) {
			out[i] = samples[j]*(1-frac) + samples[j+1]*frac
		} else {
			out[i] = samples[len(samples)-1]
		}
	}
	return out
}
