package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// ErrBlankReply marks a completion that came back without any text. It
// counts against the backend's breaker so a model that keeps answering with
// nothing is eventually skipped.
var ErrBlankReply = errors.New("blank completion")

var (
	_ llm.Provider = (*LLMFallback)(nil)
	_ stt.Provider = (*STTFallback)(nil)
)

// LLMFallback is an [llm.Provider] that fails over between completion
// backends in registration order.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

func (f *LLMFallback) AddFallback(name string, p llm.Provider) { f.group.AddFallback(name, p) }

// Complete returns the first non-blank reply. A backend that answers with
// only whitespace counts as failed and the next one is tried; when every
// backend fails and at least one answered blank, that blank reply is
// returned so callers can apply their own empty-reply handling.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var blank *llm.CompletionResponse
	resp, err := ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			if resp != nil {
				blank = resp
			}
			return nil, ErrBlankReply
		}
		return resp, nil
	})
	if err != nil && blank != nil && errors.Is(err, ErrAllFailed) {
		return blank, nil
	}
	return resp, err
}

func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

// STTFallback is the [stt.Provider] counterpart of [LLMFallback].
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

func (f *STTFallback) AddFallback(name string, p stt.Provider) { f.group.AddFallback(name, p) }

// Transcribe rejects empty audio up front so it never counts against a
// breaker. Silence recognised as an empty transcript is a valid result.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if len(req.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
}

func (f *STTFallback) Status() []EntryStatus { return f.group.Status() }
