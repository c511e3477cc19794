// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API.
//
// Each Transcribe call opens a short-lived stream: the utterance is sent as
// linear16 PCM, CloseStream is requested, and every final result received
// before the server closes the socket is joined into one transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default BCP-47 language code (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the streaming endpoint. Mainly useful in tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams req to Deepgram and collects the final results.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if len(req.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	wsURL, err := p.buildURL(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageBinary, stt.PCM16(req.Samples)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: close stream: %w", err)
	}

	var (
		parts []string
		conf  float64
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stt.Transcript{}, ctxErr
			}
			// Deepgram may drop the socket without a close frame once the
			// stream is flushed; keep what arrived.
			if len(parts) > 0 {
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}
		r, ok := parseDeepgramResponse(msg)
		if !ok || !r.final || r.text == "" {
			continue
		}
		parts = append(parts, r.text)
		conf += r.confidence
	}

	tr := stt.Transcript{Text: strings.Join(parts, " ")}
	if len(parts) > 0 {
		tr.Confidence = conf / float64(len(parts))
	}
	return tr, nil
}

// buildURL constructs the streaming endpoint URL for req.
func (p *Provider) buildURL(req stt.Request) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(req.Rate()))

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	text       string
	confidence float64
	final      bool
}

// parseDeepgramResponse parses a raw Deepgram message. It returns false for
// messages that carry no transcript.
func parseDeepgramResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	return result{
		text:       strings.TrimSpace(alt.Transcript),
		confidence: alt.Confidence,
		final:      resp.IsFinal,
	}, true
}
