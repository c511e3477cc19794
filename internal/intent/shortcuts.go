package intent

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const defaultShortcutThreshold = 0.94

// minFuzzyLen is the shortest folded text considered for fuzzy matching.
// Two-letter openers only ever match exactly.
const minFuzzyLen = 4

// Shortcut is a canned reply for a very common opener.
type Shortcut struct {
	Phrase     string `yaml:"phrase"`
	Intent     Label  `yaml:"intent"`
	Suggestion string `yaml:"suggestion"`
}

// DefaultShortcuts returns the built-in opener table.
func DefaultShortcuts() []Shortcut {
	return []Shortcut{
		{Phrase: "hello", Intent: Social, Suggestion: "Hi there! How are you doing today?"},
		{Phrase: "hi", Intent: Social, Suggestion: "Hello! Nice to meet you."},
		{Phrase: "how are you", Intent: Social, Suggestion: "I'm doing well, thank you! How about yourself?"},
	}
}

// ShortcutOption configures a [Shortcuts] table.
type ShortcutOption func(*Shortcuts)

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity accepted for a
// non-exact match. Values >= 1 disable fuzzy matching. Default: 0.94.
func WithFuzzyThreshold(threshold float64) ShortcutOption {
	return func(s *Shortcuts) {
		s.threshold = threshold
	}
}

// Shortcuts resolves openers to canned replies without a model round-trip.
// It is read-only after construction and safe for concurrent use.
type Shortcuts struct {
	entries   []Shortcut
	exact     map[string]int
	threshold float64
}

// fold is the shortcut normal form: lower-cased and trimmed. Punctuation is
// kept, so "how are you?" is not the same key as "how are you".
func fold(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NewShortcuts builds a lookup table from entries. Phrases are lower-cased
// and trimmed; later duplicates override earlier ones.
func NewShortcuts(entries []Shortcut, opts ...ShortcutOption) *Shortcuts {
	s := &Shortcuts{
		exact:     make(map[string]int, len(entries)),
		threshold: defaultShortcutThreshold,
	}
	for _, e := range entries {
		e.Phrase = fold(e.Phrase)
		if e.Phrase == "" {
			continue
		}
		if !e.Intent.IsValid() {
			e.Intent = Social
		}
		if idx, ok := s.exact[e.Phrase]; ok {
			s.entries[idx] = e
			continue
		}
		s.exact[e.Phrase] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lookup returns the shortcut matching text, if any. Exact matches on the
// lower-cased, trimmed text win; otherwise the closest phrase by Jaro-Winkler
// similarity is returned when it reaches the threshold and has the same word
// count. Questions never match fuzzily and are left to the classifier.
func (s *Shortcuts) Lookup(text string) (Shortcut, bool) {
	if s == nil {
		return Shortcut{}, false
	}
	cleaned := fold(text)
	if idx, ok := s.exact[cleaned]; ok {
		return s.entries[idx], true
	}
	if utf8.RuneCountInString(cleaned) < minFuzzyLen || s.threshold >= 1 || strings.Contains(cleaned, "?") {
		return Shortcut{}, false
	}

	words := len(strings.Fields(cleaned))
	best, bestScore := -1, s.threshold
	for i, e := range s.entries {
		if len(strings.Fields(e.Phrase)) != words {
			continue
		}
		if score := matchr.JaroWinkler(cleaned, e.Phrase, false); score >= bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Shortcut{}, false
	}
	return s.entries[best], true
}

// Len returns the number of distinct phrases.
func (s *Shortcuts) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
