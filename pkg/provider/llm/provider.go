// Package llm defines the Provider interface for text-generation backends.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama or llama.cpp server, ...) behind a single blocking completion call.
// Coaching suggestions and session summaries are short, so streaming is not
// part of the contract.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []Message

	// SystemPrompt is an optional instruction placed before Messages.
	// Providers without a dedicated system field prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// JSON asks for a single JSON object reply. Providers with a native JSON
	// mode enable it; the others rely on the prompt alone.
	JSON bool
}

// FinishLength is the finish reason of a reply cut off by MaxTokens.
const FinishLength = "length"

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage

	// FinishReason is the backend's stop reason ("stop", "length", ...), or
	// empty when the backend does not report one.
	FinishReason string
}

// Truncated reports whether the reply stopped at the token limit.
func (r *CompletionResponse) Truncated() bool {
	return r != nil && r.FinishReason == FinishLength
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response. It
	// returns promptly with an error when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
