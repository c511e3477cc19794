// Package stt defines the Provider interface for speech-to-text backends.
//
// Audio is buffered upstream and submitted one utterance at a time, so the
// contract is a single blocking call: mono float32 samples in, recognised
// text out. Streaming services (Deepgram) open a short-lived stream per
// request behind the same interface.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyAudio is returned when a request carries no samples.
var ErrEmptyAudio = errors.New("stt: request has no audio samples")

// Request is one utterance to transcribe.
type Request struct {
	// Samples is mono PCM normalised to [-1, 1].
	Samples []float32

	// SampleRate is the rate of Samples in Hz. Zero means 16000.
	SampleRate int

	// Language is a BCP-47 hint. Empty lets the provider decide.
	Language string
}

// Rate returns the effective sample rate.
func (r Request) Rate() int {
	if r.SampleRate <= 0 {
		return 16000
	}
	return r.SampleRate
}

// Duration returns the length of the audio.
func (r Request) Duration() time.Duration {
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.Rate())
}

// Transcript is a recognition result.
type Transcript struct {
	// Text is the recognised speech. Empty when nothing intelligible was
	// heard; that is not an error.
	Text string

	// Confidence is in [0, 1]. Zero when the provider does not report it.
	Confidence float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in req. It returns promptly with an
	// error when ctx is cancelled.
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}
