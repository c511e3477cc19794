package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt/whisper"
)

// nativeProvider loads the model named by WHISPER_MODEL_PATH, skipping the
// test when it is unset.
func nativeProvider(t *testing.T) *whisper.NativeProvider {
	t.Helper()
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	p, err := whisper.NewNative(path, whisper.WithNativeLanguage("en"))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewNative_BadPath(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/ggml-base.en.bin"} {
		if _, err := whisper.NewNative(path); err == nil {
			t.Errorf("NewNative(%q): expected error", path)
		}
	}
}

func TestNativeTranscribe(t *testing.T) {
	p := nativeProvider(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		req     stt.Request
		wantErr error
	}{
		{name: "empty audio", ctx: context.Background(), wantErr: stt.ErrEmptyAudio},
		{name: "cancelled", ctx: cancelled, req: stt.Request{Samples: make([]float32, 160)}, wantErr: context.Canceled},
		// One second of 48 kHz silence goes through the resampler and should
		// come back without any non-speech markers.
		{name: "silence", ctx: context.Background(), req: stt.Request{Samples: make([]float32, 48000), SampleRate: 48000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := p.Transcribe(tt.ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			t.Logf("transcript: %q", tr.Text)
		})
	}
}
