package audio_test

import (
	"testing"

	"github.com/tomwolfe/ConvoCue/internal/audio"
)

func chunk(n int) []float32 { return make([]float32, n) }

func TestBuffer_FlushOnSize(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(48000)

	for i := range 3 {
		if _, ok := b.Append(chunk(16000)); ok {
			t.Fatalf("append %d: flushed at exactly the threshold", i)
		}
	}
	if b.Len() != 48000 {
		t.Fatalf("Len = %d, want 48000", b.Len())
	}

	got, ok := b.Append(chunk(1))
	if !ok {
		t.Fatal("expected flush once threshold exceeded")
	}
	if len(got) != 48001 {
		t.Errorf("flushed %d samples, want 48001", len(got))
	}
	if b.Len() != 0 {
		t.Errorf("Len after flush = %d, want 0", b.Len())
	}
}

func TestBuffer_DefaultThresholdIsOneSecond(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)
	if _, ok := b.Append(chunk(audio.DefaultSampleRate)); ok {
		t.Fatal("flushed at exactly one second")
	}
	if got, ok := b.Append(chunk(1)); !ok || len(got) != audio.DefaultSampleRate+1 {
		t.Errorf("Append past one second: flushed %d samples, ok=%v", len(got), ok)
	}
}

func TestBuffer_FlushIdleGeneration(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)

	b.Append([]float32{0.1, 0.2})
	first := b.Generation()
	b.Append([]float32{0.3})
	second := b.Generation()

	if _, ok := b.FlushIdle(first); ok {
		t.Error("idle timer armed before the newest chunk must not flush")
	}

	got, ok := b.FlushIdle(second)
	if !ok {
		t.Fatal("current idle timer should flush")
	}
	want := []float32{0.1, 0.2, 0.3}
	if len(got) != len(want) {
		t.Fatalf("flushed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	if _, ok := b.FlushIdle(second); ok {
		t.Error("a generation may flush at most once")
	}
}

func TestBuffer_SizeFlushInvalidatesIdle(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(4)
	b.Append(chunk(3))
	gen := b.Generation()
	if _, ok := b.Append(chunk(3)); !ok {
		t.Fatal("expected size flush")
	}
	if _, ok := b.FlushIdle(gen); ok {
		t.Error("stale idle timer flushed after size flush")
	}
}

func TestBuffer_ResetAndCopy(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(100)
	src := []float32{0.5}
	b.Append(src)
	src[0] = 0.9
	gen := b.Generation()

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", b.Len())
	}
	if _, ok := b.FlushIdle(gen); ok {
		t.Error("idle timer must not flush after Reset")
	}

	b.Append([]float32{0.25})
	got, _ := b.FlushIdle(b.Generation())
	if len(got) != 1 || got[0] != 0.25 {
		t.Errorf("flushed %v, want [0.25]", got)
	}
}

func TestBuffer_EmptyChunkIgnored(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(10)
	gen := b.Generation()
	b.Append(nil)
	if b.Generation() != gen {
		t.Error("empty chunk advanced the generation")
	}
	if _, ok := b.FlushIdle(gen); ok {
		t.Error("empty buffer must not flush")
	}
}
