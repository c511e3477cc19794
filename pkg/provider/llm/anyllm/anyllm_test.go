package anyllm

import (
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
)

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "llama3.2:3b"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "be brief",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Them: hi"},
			{Role: llm.RoleUser, Content: "Them: you there?", Name: "alex"},
		},
		Temperature: 0.6,
		MaxTokens:   64,
		JSON:        true,
	})

	if params.Model != "llama3.2:3b" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 3 || params.Messages[0].Role != "system" {
		t.Fatalf("Messages = %+v, want system + 2 user", params.Messages)
	}
	if got := params.Messages[2]; got.ContentString() != "Them: you there?" || got.Name != "alex" {
		t.Errorf("last message = %+v", got)
	}
	if params.Temperature == nil || *params.Temperature != 0.6 {
		t.Errorf("Temperature = %v, want 0.6", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 64 {
		t.Errorf("MaxTokens = %v, want 64", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero temperature / max tokens should leave provider defaults")
	}
	if len(params.Messages) != 1 {
		t.Errorf("Messages = %d, want 1 without system prompt", len(params.Messages))
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()

	got := Backends()
	if !slices.IsSorted(got) {
		t.Errorf("Backends() not sorted: %v", got)
	}
	for _, want := range []string{"anthropic", "llamacpp", "ollama", "openai"} {
		if !slices.Contains(got, want) {
			t.Errorf("Backends() missing %q", want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		model   string
		wantErr bool
	}{
		{name: "empty backend", backend: " ", model: "gpt-4o-mini", wantErr: true},
		{name: "empty model", backend: "openai", wantErr: true},
		{name: "unsupported", backend: "carrier-pigeon", model: "m", wantErr: true},
		{name: "mixed case", backend: " OpenAI ", model: "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tt.backend, tt.model, anyllmlib.WithAPIKey("sk-test"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q, %q) err = %v, wantErr %v", tt.backend, tt.model, err, tt.wantErr)
			}
			if err == nil && (p.Name() != "openai" || p.Model() != tt.model) {
				t.Errorf("Name/Model = %q/%q", p.Name(), p.Model())
			}
		})
	}
}
