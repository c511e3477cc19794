package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
	sttmock "github.com/tomwolfe/ConvoCue/pkg/provider/stt/mock"
)

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Text: "hello"}
	secondary := &sttmock.Provider{Text: "other"}
	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.AddFallback("deepgram", secondary)

	tr, err := fb.Transcribe(context.Background(), stt.Request{Samples: []float32{0.1}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hello" {
		t.Errorf("Text = %q, want hello", tr.Text)
	}
	if len(secondary.Calls()) != 0 {
		t.Errorf("secondary called %d times", len(secondary.Calls()))
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: errors.New("whisper down")}
	secondary := &sttmock.Provider{Text: "from deepgram"}
	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.AddFallback("deepgram", secondary)

	tr, err := fb.Transcribe(context.Background(), stt.Request{Samples: []float32{0.1}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "from deepgram" {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewSTTFallback(&sttmock.Provider{Err: errors.New("a")}, "a", FallbackConfig{})
	fb.AddFallback("b", &sttmock.Provider{Err: errors.New("b")})

	if _, err := fb.Transcribe(context.Background(), stt.Request{Samples: []float32{0.1}}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_EmptyAudio(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Text: "x"}
	fb := NewSTTFallback(primary, "a", FallbackConfig{})
	if _, err := fb.Transcribe(context.Background(), stt.Request{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	if len(primary.Calls()) != 0 {
		t.Error("provider called for empty audio")
	}
}
