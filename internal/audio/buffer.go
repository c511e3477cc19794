// Package audio holds the session's audio-side state: the chunk buffer that
// decides when accumulated speech is handed to recognition, the loudness
// based speaker attribution heuristic and small PCM helpers.
//
// None of the types in this package start goroutines or timers. The session
// loop drives them and owns the idle timer, which is why [Buffer] exposes a
// generation counter instead of a callback.
package audio

const (
	// DefaultSampleRate is the rate clients are expected to stream at.
	DefaultSampleRate = 16000

	// DefaultFlushSamples is the sample count that triggers an immediate flush
	// once exceeded: one second at [DefaultSampleRate]. Callers streaming at
	// another rate should pass their own rate to [NewBuffer].
	DefaultFlushSamples = DefaultSampleRate
)

// Buffer accumulates PCM chunks until a flush condition is met.
//
// Every append and every flush advance the generation. The caller arms an
// idle timer tagged with [Buffer.Generation] after each append and calls
// [Buffer.FlushIdle] with that tag when it fires. A tag from an earlier
// generation is ignored, so only the timer armed after the newest chunk can
// flush and at most one flush happens per generation.
type Buffer struct {
	threshold int

	chunks     [][]float32
	samples    int
	generation uint64
}

// NewBuffer returns an empty Buffer. A non-positive threshold selects
// [DefaultFlushSamples].
func NewBuffer(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultFlushSamples
	}
	return &Buffer{threshold: threshold}
}

// Append adds chunk. If the buffered sample count now exceeds the threshold
// the buffer is flushed and the concatenated samples are returned with
// ok=true.
func (b *Buffer) Append(chunk []float32) (samples []float32, ok bool) {
	if len(chunk) == 0 {
		return nil, false
	}
	c := make([]float32, len(chunk))
	copy(c, chunk)
	b.chunks = append(b.chunks, c)
	b.samples += len(c)
	b.generation++

	if b.samples > b.threshold {
		return b.flush(), true
	}
	return nil, false
}

// FlushIdle flushes the buffer if gen is still the current generation and
// there is something to flush.
func (b *Buffer) FlushIdle(gen uint64) (samples []float32, ok bool) {
	if gen != b.generation || b.samples == 0 {
		return nil, false
	}
	return b.flush(), true
}

// Generation returns the tag for an idle timer armed now.
func (b *Buffer) Generation() uint64 { return b.generation }

// Len returns the number of buffered samples.
func (b *Buffer) Len() int { return b.samples }

// Reset discards buffered audio and invalidates outstanding idle timers.
func (b *Buffer) Reset() {
	b.chunks = nil
	b.samples = 0
	b.generation++
}

func (b *Buffer) flush() []float32 {
	out := make([]float32, 0, b.samples)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	b.chunks = nil
	b.samples = 0
	b.generation++
	return out
}
