// NativeProvider needs the whisper.cpp static library (libwhisper.a) and
// whisper.h at link time, found through LIBRARY_PATH and C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// modelSampleRate is the only rate whisper.cpp accepts.
const modelSampleRate = 16000

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider runs whisper.cpp in-process. The model is shared; each
// call gets its own inference context, so calls may run concurrently.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

// NativeOption configures a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language used when a request has none.
// Default: "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative loads the ggml model at modelPath. Close releases it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// Transcribe implements stt.Provider. Inference cannot be interrupted, so a
// cancellation that arrives mid-run is reported once it finishes.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	switch {
	case len(req.Samples) == 0:
		return stt.Transcript{}, stt.ErrEmptyAudio
	case ctx.Err() != nil:
		return stt.Transcript{}, ctx.Err()
	}

	text, err := p.infer(resampled(req), p.languageFor(req))
	if err != nil {
		return stt.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	return stt.Transcript{Text: text}, nil
}

func (p *NativeProvider) languageFor(req stt.Request) string {
	if req.Language != "" {
		return req.Language
	}
	return p.language
}

func resampled(req stt.Request) []float32 {
	if r := req.Rate(); r != modelSampleRate {
		return audio.Resample(req.Samples, r, modelSampleRate)
	}
	return req.Samples
}

// infer runs one inference pass and joins the cleaned segments.
func (p *NativeProvider) infer(samples []float32, lang string) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: new context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language rejected, using model default", "language", lang, "err", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: segment: %w", err)
		}
		b.WriteString(seg.Text)
		b.WriteByte(' ')
	}
	return cleanTranscript(b.String()), nil
}
