// Package coach turns conversation state into requests for the text
// generation service and turns its replies back into suggestions and
// summaries.
//
// The generation model is asked for a small JSON object. Replies that are not
// valid JSON are salvaged with a best-effort text extraction rather than
// rejected, so a suggestion is always produced for a successful call.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
)

// ErrMalformedResponse marks a reply that could not be decoded as JSON. It is
// never returned by [Suggester.Suggest]; the fallback text is used instead.
var ErrMalformedResponse = errors.New("coach: malformed model response")

// ExhaustedInstruction replaces the persona prompt when the user is out of
// energy.
const ExhaustedInstruction = "URGENT: User is exhausted. Suggest a polite exit."

// Generation parameters for suggestions.
const (
	suggestTemperature = 0.6
	retryTemperature   = 0.85
	suggestMaxTokens   = 64
)

const suggestRules = `Rules:
- Provide response as JSON: {"intent": "social|professional|conflict|empathy|positive", "suggestion": "3-5 Keywords", "speakerToggle": boolean}
- speakerToggle is true ONLY if the last message was a direct question to the user (e.g., "What do you think?")
- suggestion: NO full sentences, NO preamble
- If exhausted, suggest exit strategies`

// Context is what the model is told about the moment it is advising on.
type Context struct {
	Persona       string
	Intent        intent.Label
	Battery       int
	Exhausted     bool
	RecentIntents []string
}

// SuggestRequest is one suggestion call.
type SuggestRequest struct {
	// Messages is the rolling window of "Me: ..." / "Them: ..." lines, oldest
	// first.
	Messages    []string
	Context     Context
	Instruction string

	// Retry asks for a more varied answer.
	Retry bool
}

// Suggestion is a decoded reply.
type Suggestion struct {
	Text string

	// Intent is the model's own classification, or the request intent when
	// the model gave none or an unknown one.
	Intent intent.Label

	// SpeakerToggle is the model's hint that the last line was addressed to
	// the user, meaning the speaker assignment is probably wrong.
	SpeakerToggle bool

	// Fallback is set when the reply was salvaged from malformed output.
	Fallback bool
}

// Suggester requests suggestions from an LLM provider.
type Suggester struct {
	llm llm.Provider
}

// NewSuggester creates a Suggester backed by provider.
func NewSuggester(provider llm.Provider) *Suggester {
	return &Suggester{llm: provider}
}

// Suggest performs one suggestion request. When the first reply carries no
// usable text and req.Retry is false, it is retried once at a higher
// temperature. The returned text is never empty.
func (s *Suggester) Suggest(ctx context.Context, req SuggestRequest) (Suggestion, error) {
	sug, err := s.suggestOnce(ctx, req)
	if err != nil {
		return Suggestion{}, err
	}
	if sug.Text == "" && !req.Retry {
		req.Retry = true
		slog.Debug("coach: empty suggestion, retrying", "intent", req.Context.Intent)
		sug, err = s.suggestOnce(ctx, req)
		if err != nil {
			return Suggestion{}, err
		}
	}
	if sug.Text == "" {
		sug.Text = DefaultFallbackText
		sug.Fallback = true
	}
	return sug, nil
}

func (s *Suggester) suggestOnce(ctx context.Context, req SuggestRequest) (Suggestion, error) {
	resp, err := s.llm.Complete(ctx, BuildSuggestRequest(req))
	if err != nil {
		return Suggestion{}, fmt.Errorf("coach: suggest: %w", err)
	}
	if resp == nil {
		return Suggestion{}, fmt.Errorf("coach: suggest: %w", ErrMalformedResponse)
	}
	sug, perr := ParseSuggestion(resp.Content, req.Context.Intent)
	if perr != nil {
		slog.Debug("coach: using fallback text", "err", perr, "raw", resp.Content)
	}
	return sug, nil
}

// BuildSuggestRequest renders req as a completion request.
func BuildSuggestRequest(req SuggestRequest) llm.CompletionRequest {
	var sys strings.Builder
	fmt.Fprintf(&sys, "Role:%s. Battery:%d%%. Goal:%s.", req.Context.Persona, req.Context.Battery, req.Instruction)
	if len(req.Context.RecentIntents) > 0 {
		fmt.Fprintf(&sys, " Recent intents: %s.", strings.Join(req.Context.RecentIntents, "_"))
	}
	fmt.Fprintf(&sys, " Current intent: %s.", strings.ToUpper(string(req.Context.Intent)))
	if req.Context.Exhausted {
		sys.WriteString(" The user is exhausted.")
	}
	sys.WriteString(" Context: Provide a relevant, concise suggestion and classify the intent.\n")
	sys.WriteString(suggestRules)

	msgs := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m})
	}

	temp := suggestTemperature
	if req.Retry {
		temp = retryTemperature
	}
	return llm.CompletionRequest{
		SystemPrompt: sys.String(),
		Messages:     msgs,
		Temperature:  temp,
		MaxTokens:    suggestMaxTokens,
		JSON:         true,
	}
}
