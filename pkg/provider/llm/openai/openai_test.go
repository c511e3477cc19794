package openai

import (
	"testing"

	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
)

func TestBuildParams_Roles(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o-mini"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "coach",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "persona: calm"},
			{Role: llm.RoleUser, Content: "Them: how was the weekend?"},
			{Role: llm.RoleAssistant, Content: "Ask about their hike"},
		},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(params.Messages))
	}
	m := params.Messages
	if m[0].OfSystem == nil || m[1].OfSystem == nil || m[2].OfUser == nil || m[3].OfAssistant == nil {
		t.Errorf("unexpected message kinds: %+v", m)
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		req      llm.CompletionRequest
		wantTemp bool
		wantMax  int64
		wantJSON bool
	}{
		{
			name: "defaults",
			req:  llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "Them: hi"}}},
		},
		{
			name: "tuned json",
			req: llm.CompletionRequest{
				SystemPrompt: "coach",
				Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Them: hi"}},
				Temperature:  0.85,
				MaxTokens:    64,
				JSON:         true,
			},
			wantTemp: true,
			wantMax:  64,
			wantJSON: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &Provider{model: "gpt-4o-mini"}
			params, err := p.buildParams(tt.req)
			if err != nil {
				t.Fatalf("buildParams: %v", err)
			}
			if string(params.Model) != "gpt-4o-mini" {
				t.Errorf("Model = %q", params.Model)
			}
			if got := params.Temperature.Valid(); got != tt.wantTemp {
				t.Errorf("Temperature set = %v, want %v", got, tt.wantTemp)
			}
			if tt.wantTemp && params.Temperature.Value != tt.req.Temperature {
				t.Errorf("Temperature = %v, want %v", params.Temperature.Value, tt.req.Temperature)
			}
			if params.MaxCompletionTokens.Value != tt.wantMax {
				t.Errorf("MaxCompletionTokens = %v, want %d", params.MaxCompletionTokens.Value, tt.wantMax)
			}
			if got := params.ResponseFormat.OfJSONObject != nil; got != tt.wantJSON {
				t.Errorf("JSON mode = %v, want %v", got, tt.wantJSON)
			}
		})
	}
}

func TestBuildParams_UnknownRole(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o-mini"}
	if _, err := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: "narrator"}}}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		model   string
		opts    []Option
		wantErr bool
	}{
		{name: "missing key", model: "gpt-4o", wantErr: true},
		{name: "missing model", key: "sk-test", wantErr: true},
		{name: "plain", key: "sk-test", model: "gpt-4o"},
		{
			name:  "all options",
			key:   "sk-test",
			model: "gpt-4o",
			opts: []Option{
				WithBaseURL("https://llm.internal.example.com/v1"),
				WithOrganization("org-123"),
				WithTimeout(0),
				WithMaxRetries(-1),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tt.key, tt.model, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p.model != tt.model {
				t.Errorf("model = %q, want %q", p.model, tt.model)
			}
		})
	}
}

func TestCompletionResponse_Truncated(t *testing.T) {
	t.Parallel()
	var nilResp *llm.CompletionResponse
	if nilResp.Truncated() {
		t.Error("nil response reported truncated")
	}
	if !(&llm.CompletionResponse{FinishReason: llm.FinishLength}).Truncated() {
		t.Error("length finish not reported truncated")
	}
	if (&llm.CompletionResponse{FinishReason: "stop"}).Truncated() {
		t.Error("stop finish reported truncated")
	}
}
