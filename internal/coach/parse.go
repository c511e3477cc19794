package coach

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tomwolfe/ConvoCue/internal/intent"
)

// DefaultFallbackText is used when nothing can be salvaged from a reply.
const DefaultFallbackText = "Continue conversation"

var suggestionField = regexp.MustCompile(`"suggestion"\s*:\s*"([^"}]*)`)

type wireSuggestion struct {
	Intent        string `json:"intent"`
	Suggestion    string `json:"suggestion"`
	SpeakerToggle any    `json:"speakerToggle"`
}

// ParseSuggestion decodes a model reply. The reply is cut down to its outermost
// braces first; models often wrap JSON in code fences or trailing chatter.
// When decoding still fails, the returned Suggestion carries fallback text and
// the error wraps [ErrMalformedResponse].
func ParseSuggestion(raw string, fallback intent.Label) (Suggestion, error) {
	s := normaliseJSON(raw)

	var w wireSuggestion
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return Suggestion{
			Text:     salvage(s),
			Intent:   fallback,
			Fallback: true,
		}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	sug := Suggestion{
		Text:          strings.TrimSpace(w.Suggestion),
		Intent:        fallback,
		SpeakerToggle: truthy(w.SpeakerToggle),
	}
	if l := intent.Label(strings.ToLower(strings.TrimSpace(w.Intent))); l.IsValid() {
		sug.Intent = l
	}
	return sug, nil
}

func normaliseJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		s = s[i:]
	} else {
		s = "{" + s
	}
	if !strings.HasSuffix(s, "}") {
		if i := strings.LastIndex(s, "}"); i >= 0 {
			s = s[:i+1]
		} else {
			s += "}"
		}
	}
	return s
}

// salvage extracts readable text from a reply that is not valid JSON.
func salvage(s string) string {
	if m := suggestionField.FindStringSubmatch(s); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t
		}
	}
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	first, _, _ := strings.Cut(s, ",")
	if t := strings.Trim(strings.TrimSpace(first), `"`); t != "" {
		return t
	}
	return DefaultFallbackText
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}
