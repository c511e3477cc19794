// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Text: "how are you"}
//	tr, err := p.Transcribe(ctx, stt.Request{Samples: pcm})
package mock

import (
	"context"
	"sync"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx context.Context
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned as the transcript text.
	Text string

	// Texts, when non-empty, is consumed in order before falling back to
	// Text.
	Texts []string

	// Err, if non-nil, is returned from Transcribe.
	Err error

	// Block, if non-nil, makes Transcribe wait until it is closed or ctx is
	// done.
	Block chan struct{}

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	text := p.Text
	if len(p.Texts) > 0 {
		text = p.Texts[0]
		p.Texts = p.Texts[1:]
	}
	return stt.Transcript{Text: text, Confidence: 1}, nil
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
