package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
)

// summarySystemPrompt is the system prompt sent when summarising a session.
const summarySystemPrompt = "You are an expert social intelligence analyst. Provide brief, structured feedback."

const (
	summaryTemperature = 0.5
	summaryMaxTokens   = 150
)

// Line is one transcript entry as seen by the summariser.
type Line struct {
	Speaker string
	Text    string
}

// Stats are the session figures quoted in the summary prompt.
type Stats struct {
	TotalCount   int
	MeCount      int
	ThemCount    int
	DrainPercent int

	// Distribution maps intent label to entry count. Optional.
	Distribution map[string]int
	Dominant     string
}

// Summariser produces an end-of-session reflection.
type Summariser interface {
	Summarise(ctx context.Context, transcript []Line, stats Stats) (string, error)
}

// LLMSummariser uses an LLM provider to summarise sessions.
type LLMSummariser struct {
	llm llm.Provider
}

var _ Summariser = (*LLMSummariser)(nil)

// NewLLMSummariser creates a new [LLMSummariser] backed by the given provider.
func NewLLMSummariser(provider llm.Provider) *LLMSummariser {
	return &LLMSummariser{llm: provider}
}

// Summarise returns the model's summary of transcript. An empty transcript
// yields an empty summary without calling the model.
func (s *LLMSummariser) Summarise(ctx context.Context, transcript []Line, stats Stats) (string, error) {
	if len(transcript) == 0 {
		return "", nil
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: SummaryPrompt(transcript, stats)},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("summarise: %w", ErrMalformedResponse)
	}
	return strings.TrimSpace(resp.Content), nil
}

// SummaryPrompt renders the user message for a summary request.
func SummaryPrompt(transcript []Line, stats Stats) string {
	var sb strings.Builder
	sb.WriteString("Analyze this conversation transcript and stats to provide a concise social battery summary.\n")
	sb.WriteString("Stats:\n")
	fmt.Fprintf(&sb, "- Total Messages: %d\n", stats.TotalCount)
	fmt.Fprintf(&sb, "- My Messages: %d\n", stats.MeCount)
	fmt.Fprintf(&sb, "- Their Messages: %d\n", stats.ThemCount)
	fmt.Fprintf(&sb, "- Battery Drain: %d%%\n", stats.DrainPercent)
	if stats.Dominant != "" {
		fmt.Fprintf(&sb, "- Dominant Intent: %s\n", stats.Dominant)
	}
	sb.WriteString("\nTranscript:\n")
	for _, l := range transcript {
		fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(l.Speaker), l.Text)
	}
	sb.WriteString(`
Output exactly 3 bullet points:
1. **Reflection**: A one-sentence insight into the conversation's tone.
2. **Energy Drain**: Why it was taxing (e.g., one-sided, high conflict, long).
3. **Tip**: One specific social skill tip for next time.
Tone: Supportive, clinical yet empathetic. Max 80 words total.`)
	return sb.String()
}
