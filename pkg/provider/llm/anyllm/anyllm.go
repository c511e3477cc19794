// Package anyllm adapts github.com/mozilla-ai/any-llm-go to [llm.Provider],
// so one registration covers the hosted vendors and the local runtimes
// (Ollama, llama.cpp, llamafile) that the coach can be pointed at.
//
//	p, err := anyllm.New("ollama", "llama3.2:3b", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
)

type constructor func(...anyllmlib.Option) (anyllmlib.Provider, error)

// wrap erases the concrete backend type so every vendor fits one table.
func wrap[P anyllmlib.Provider](f func(...anyllmlib.Option) (P, error)) constructor {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		p, err := f(opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var backends = map[string]constructor{
	"openai":    wrap(anyllmoai.New),
	"anthropic": wrap(anthropic.New),
	"gemini":    wrap(gemini.New),
	"ollama":    wrap(ollama.New),
	"deepseek":  wrap(deepseek.New),
	"mistral":   wrap(mistral.New),
	"groq":      wrap(groq.New),
	"llamacpp":  wrap(llamacpp.New),
	"llamafile": wrap(llamafile.New),
}

// Backends returns the sorted backend names accepted by [New].
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var _ llm.Provider = (*Provider)(nil)

// Provider is a single backend and model pair.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider for the named backend. Without
// anyllmlib.WithAPIKey the backend reads its usual environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backend, model string, opts ...anyllmlib.Option) (*Provider, error) {
	name := strings.ToLower(strings.TrimSpace(backend))
	if name == "" {
		return nil, errors.New("anyllm: backend name must not be empty")
	}
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q (have %s)", backend, strings.Join(Backends(), ", "))
	}
	b, err := ctor(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", name, err)
	}
	return &Provider{backend: b, name: name, model: model}, nil
}

// Name returns the normalised backend name.
func (p *Provider) Name() string { return p.name }

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s returned no choices", p.name)
	}

	choice := resp.Choices[0]
	out := &llm.CompletionResponse{
		Content:      choice.Message.ContentString(),
		FinishReason: string(choice.FinishReason),
	}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// buildParams maps a request onto any-llm parameters. JSON mode is left to
// the prompt; zero temperature and token limits keep the backend defaults.
func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: make([]anyllmlib.Message, 0, len(req.Messages)+1),
	}
	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, anyllmlib.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	if req.Temperature != 0 {
		params.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	return params
}
