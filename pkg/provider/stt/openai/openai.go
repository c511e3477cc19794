// Package openai provides an STT provider backed by the OpenAI audio
// transcription endpoint (or any compatible server via [WithBaseURL]).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using POST /audio/transcriptions.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

type config struct {
	baseURL    string
	model      string
	language   string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLanguage sets the default ISO-639-1 language hint.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries a failed request. Negative
// keeps the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs an OpenAI transcription provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	cfg := &config{model: string(oai.AudioModelWhisper1), maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}
	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe uploads req as a WAV file and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if len(req.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	wav := stt.EncodeWAV(req.Samples, req.Rate())

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		params.Language = oai.String(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: transcription: %w", err)
	}
	return stt.Transcript{Text: strings.TrimSpace(resp.Text)}, nil
}
