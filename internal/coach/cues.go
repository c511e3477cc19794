package coach

import (
	"fmt"

	"github.com/tomwolfe/ConvoCue/internal/intent"
)

// ExhaustedKey selects the quick actions offered once the user is exhausted.
const ExhaustedKey = "exhausted"

var bridgePhrases = map[intent.Label]string{
	intent.Social:       "That's a good point, let me think...",
	intent.Professional: "I see, let me consider the best way to approach that...",
	intent.Conflict:     "I hear you, let's find the right words here...",
	intent.Empathy:      "I understand how you feel, give me a moment...",
	intent.Positive:     "That's great! Let me think of a good follow-up...",
	intent.General:      "Thinking of a good response...",
}

// BridgePhrase is the placeholder shown while a suggestion for l is being
// generated.
func BridgePhrase(l intent.Label) string {
	if p, ok := bridgePhrases[l]; ok {
		return p
	}
	return bridgePhrases[intent.General]
}

// StillThinking is the placeholder shown once a suggestion request for l has
// outlived its soft timeout.
func StillThinking(l intent.Label) string {
	return fmt.Sprintf("Still thinking about %s...", l)
}

// QuickAction is a ready-made line the user can pick instead of waiting for a
// generated suggestion.
type QuickAction struct {
	Label string `yaml:"label" json:"label"`
	Text  string `yaml:"text" json:"text"`
}

// QuickActions maps an intent label or [ExhaustedKey] to its actions.
type QuickActions map[string][]QuickAction

// DefaultQuickActions returns the built-in quick-action table.
func DefaultQuickActions() QuickActions {
	return QuickActions{
		string(intent.Social): {
			{Label: "Tell me more", Text: "That's interesting, tell me more about that?"},
			{Label: "Good question", Text: "That's a great question, let me think about that for a second."},
			{Label: "Valid", Text: "I totally see what you mean, that makes a lot of sense."},
		},
		string(intent.Professional): {
			{Label: "Next steps?", Text: "What do you think are the most important next steps here?"},
			{Label: "Confirm", Text: "Just to make sure I'm on the same page, you're saying...?"},
			{Label: "Goal", Text: "What is the primary goal we're trying to achieve with this?"},
		},
		string(intent.Conflict): {
			{Label: "De-escalate", Text: "I hear that you're frustrated, and I want to understand your perspective better."},
			{Label: "Pause", Text: "I think I need a minute to process that before I respond. Can we take a quick break?"},
			{Label: "Bridge", Text: "We seem to have different views here. How can we find a middle ground?"},
		},
		string(intent.Empathy): {
			{Label: "Support", Text: "That sounds really tough. Is there anything I can do to support you right now?"},
			{Label: "Validate", Text: "It's completely understandable that you feel that way."},
			{Label: "Listen", Text: "I'm here to listen. Take all the time you need."},
		},
		ExhaustedKey: {
			{Label: "Soft Exit", Text: "It's been great chatting, but I'm starting to hit a wall. Mind if we wrap this up?"},
			{Label: "Hard Exit", Text: "I've actually got to head out now, but let's catch up again soon!"},
			{Label: "Raincheck", Text: "I'm feeling a bit drained right now. Can we continue this conversation another time?"},
		},
	}
}

// For returns the actions for l, or the exhausted set when exhausted is
// true. Intents without an entry fall back to the social set.
func (q QuickActions) For(l intent.Label, exhausted bool) []QuickAction {
	if exhausted {
		return q[ExhaustedKey]
	}
	if a, ok := q[string(l)]; ok {
		return a
	}
	return q[string(intent.Social)]
}
