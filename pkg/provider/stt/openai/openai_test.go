package openai_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt/openai"
)

type captured struct {
	mu       sync.Mutex
	path     string
	model    string
	language string
	auth     string
}

func newServer(t *testing.T, status int, body string, c *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c != nil {
			_ = r.ParseMultipartForm(1 << 20)
			c.mu.Lock()
			c.path = r.URL.Path
			c.model = r.FormValue("model")
			c.language = r.FormValue("language")
			c.auth = r.Header.Get("Authorization")
			c.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()
	if _, err := openai.New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var c captured
	srv := newServer(t, http.StatusOK, `{"text":" are you free later? "}`, &c)
	p, err := openai.New("sk-test", openai.WithBaseURL(srv.URL+"/"), openai.WithLanguage("en"), openai.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), stt.Request{Samples: make([]float32, 160)})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "are you free later?" {
		t.Errorf("Text = %q", tr.Text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "/audio/transcriptions" {
		t.Errorf("path = %q, want /audio/transcriptions", c.path)
	}
	if c.model != "whisper-1" || c.language != "en" {
		t.Errorf("form model=%q language=%q", c.model, c.language)
	}
	if c.auth != "Bearer sk-test" {
		t.Errorf("auth = %q", c.auth)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()

	p, _ := openai.New("sk-test")
	if _, err := p.Transcribe(context.Background(), stt.Request{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`, nil)
	p, _ := openai.New("sk-test", openai.WithBaseURL(srv.URL+"/"), openai.WithMaxRetries(0))
	if _, err := p.Transcribe(context.Background(), stt.Request{Samples: []float32{0.1}}); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}
