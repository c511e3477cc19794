package intent

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// backchannels are short acknowledgements that do not warrant a suggestion.
var backchannels = []string{
	"yeah", "yes", "yep", "yup", "ok", "okay", "sure", "right", "uh huh", "mhm",
	"mm", "hmm", "cool", "got it", "i see", "alright", "nice", "true", "exactly",
	"totally", "oh", "ah", "wow",
}

// Clean lower-cases text, trims surrounding whitespace and strips trailing
// punctuation. It is the normal form used by eligibility checks.
func Clean(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".,!?;: \t")
	return s
}

// ShouldSuggest reports whether an utterance is substantial enough to be worth
// a suggestion. Questions always qualify. Very short texts and bare
// backchannels ("yeah", "got it", "ok sure") never do.
func ShouldSuggest(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	cleaned := Clean(text)
	if utf8.RuneCountInString(cleaned) < minClassifiable {
		return false
	}
	if slices.Contains(backchannels, cleaned) {
		return false
	}
	words := strings.Fields(cleaned)
	if len(words) < 3 && slices.Contains(backchannels, strings.Trim(words[0], ",.!;:")) {
		return false
	}
	return true
}
