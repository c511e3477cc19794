// Package whisper provides whisper.cpp speech recognition.
//
// [Provider] posts each utterance to a whisper-server's /inference endpoint.
// [NativeProvider] links whisper.cpp through CGO and runs in-process.
// Both strip the non-speech markers whisper emits for silence and noise
// ("[BLANK_AUDIO]", "(music)"), so a quiet chunk yields an empty transcript
// rather than text the coach would react to.
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	tr, err := p.Transcribe(ctx, stt.Request{Samples: pcm})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	// errorBodyLimit caps how much of a failed response ends up in the error.
	errorBodyLimit = 256
)

// nonSpeech matches whisper's bracketed annotations.
var nonSpeech = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// cleanTranscript drops non-speech annotations and collapses whitespace.
func cleanTranscript(s string) string {
	return strings.Join(strings.Fields(nonSpeech.ReplaceAllString(s, " ")), " ")
}

var _ stt.Provider = (*Provider)(nil)

// Provider is a client for a whisper.cpp HTTP server.
type Provider struct {
	endpoint string
	model    string
	language string
	client   *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithModel names the model the server should use. Empty keeps the model the
// server was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language used when a request has none. Default: "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New returns a Provider for the server at serverURL, e.g.
// "http://localhost:8080".
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		endpoint: strings.TrimRight(serverURL, "/") + "/inference",
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if len(req.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	body, contentType, err := p.form(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build form: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: decode response: %w", err)
	}
	return stt.Transcript{Text: cleanTranscript(result.Text)}, nil
}

// form renders req as the multipart body whisper-server expects.
func (p *Provider) form(req stt.Request) (io.Reader, string, error) {
	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(stt.EncodeWAV(req.Samples, req.Rate())); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"language", lang},
		{"model", p.model},
		{"response_format", "json"},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("field %s: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
