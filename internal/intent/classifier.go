// Package intent classifies a single utterance into a coarse conversational
// intent and decides whether it deserves a suggestion at all.
//
// Classification is rule based and deterministic: per-label keyword sets
// contribute weighted scores, a handful of nuance patterns adjust or scale
// those scores, and the highest label above a threshold wins. The same input
// always produces the same [Result], so classifiers may be shared freely
// between goroutines.
package intent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Label is a coarse intent category.
type Label string

const (
	Social       Label = "social"
	Professional Label = "professional"
	Conflict     Label = "conflict"
	Empathy      Label = "empathy"
	Positive     Label = "positive"

	// General is returned when no label clears the threshold or the top score
	// is shared by more than one label.
	General Label = "general"
)

// Labels lists every scoring label in a stable order. [General] is not
// included because it never accumulates a score.
var Labels = []Label{Social, Professional, Conflict, Empathy, Positive}

// IsValid reports whether l is a known label, including [General].
func (l Label) IsValid() bool {
	switch l {
	case Social, Professional, Conflict, Empathy, Positive, General:
		return true
	}
	return false
}

// Fixed scoring adjustments that are not part of the configurable [Table].
const (
	reflectiveBoost = 1.0
	questionBoost   = 0.8
	phraseFactor    = 1.5
	positiveDamping = 0.7
	conflictDamping = 0.8

	// minClassifiable is the shortest text that is scored at all.
	minClassifiable = 3
)

var reflectivePattern = regexp.MustCompile(`(?i)\bi (feel|think|believe)\b`)

// Category is one label's keyword set and per-match weight.
type Category struct {
	Label    Label    `yaml:"label"`
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

// Nuance is a pattern that, when present anywhere in the text, adds fixed
// amounts to some labels and/or scales every score.
type Nuance struct {
	Name string `yaml:"name"`

	// Pattern is a regular expression matched case-insensitively.
	Pattern string `yaml:"pattern"`

	// Adjust holds additive per-label deltas. Applied before any multiplier.
	Adjust map[Label]float64 `yaml:"adjust,omitempty"`

	// Multiplier scales all scores when non-zero.
	Multiplier float64 `yaml:"multiplier,omitempty"`
}

// Table is the full classifier configuration.
type Table struct {
	// Threshold is the exclusive lower bound a winning score must exceed.
	Threshold  float64    `yaml:"threshold"`
	Categories []Category `yaml:"categories"`
	Nuances    []Nuance   `yaml:"nuances"`
}

// Result is the outcome of classifying one utterance.
type Result struct {
	Label Label
	Score float64

	// Scores is the full per-label vector after every adjustment.
	Scores map[Label]float64
}

type compiledKeyword struct {
	re     *regexp.Regexp
	weight float64
}

type compiledCategory struct {
	label    Label
	keywords []compiledKeyword
}

type compiledNuance struct {
	re         *regexp.Regexp
	adjust     map[Label]float64
	multiplier float64
}

// Classifier scores utterances against a compiled [Table].
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	threshold  float64
	categories []compiledCategory
	nuances    []compiledNuance
}

// New compiles t into a Classifier. It fails on unknown labels or patterns
// that are not valid regular expressions.
func New(t Table) (*Classifier, error) {
	c := &Classifier{threshold: t.Threshold}

	for _, cat := range t.Categories {
		if !cat.Label.IsValid() || cat.Label == General {
			return nil, fmt.Errorf("intent: category has invalid label %q", cat.Label)
		}
		cc := compiledCategory{label: cat.Label}
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("intent: keyword %q: %w", kw, err)
			}
			w := cat.Weight
			if strings.Contains(kw, " ") {
				w *= phraseFactor
			}
			cc.keywords = append(cc.keywords, compiledKeyword{re: re, weight: w})
		}
		c.categories = append(c.categories, cc)
	}

	for _, n := range t.Nuances {
		re, err := regexp.Compile(`(?i)\b(` + n.Pattern + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("intent: nuance %q: %w", n.Name, err)
		}
		for l := range n.Adjust {
			if !l.IsValid() || l == General {
				return nil, fmt.Errorf("intent: nuance %q adjusts invalid label %q", n.Name, l)
			}
		}
		c.nuances = append(c.nuances, compiledNuance{re: re, adjust: n.Adjust, multiplier: n.Multiplier})
	}
	return c, nil
}

// MustNew is like [New] but panics on error. Intended for package-level tables.
func MustNew(t Table) *Classifier {
	c, err := New(t)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify scores text and returns the winning label.
func (c *Classifier) Classify(text string) Result {
	scores := make(map[Label]float64, len(Labels))
	for _, l := range Labels {
		scores[l] = 0
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minClassifiable {
		return Result{Label: General, Scores: scores}
	}

	for _, cat := range c.categories {
		for _, kw := range cat.keywords {
			if kw.re.MatchString(text) {
				scores[cat.label] += kw.weight
			}
		}
	}

	// Additive nuances first, then multipliers.
	multiplier := 1.0
	for _, n := range c.nuances {
		if !n.re.MatchString(text) {
			continue
		}
		for l, delta := range n.adjust {
			scores[l] += delta
		}
		if n.multiplier != 0 {
			multiplier *= n.multiplier
		}
	}
	if multiplier != 1.0 {
		for l := range scores {
			scores[l] *= multiplier
		}
	}

	if scores[Positive] > 0 && scores[Conflict] > 0 {
		scores[Positive] *= positiveDamping
		scores[Conflict] *= conflictDamping
	}
	if reflectivePattern.MatchString(text) {
		scores[Empathy] += reflectiveBoost
	}
	if strings.Contains(text, "?") {
		scores[Social] += questionBoost
	}

	label := c.pick(scores)
	return Result{Label: label, Score: scores[label], Scores: scores}
}

// pick returns the single highest label strictly above the threshold.
func (c *Classifier) pick(scores map[Label]float64) Label {
	best, bestScore, tied := General, c.threshold, false
	for _, l := range Labels {
		s := scores[l]
		switch {
		case s > bestScore:
			best, bestScore, tied = l, s, false
		case s == bestScore && best != General:
			tied = true
		}
	}
	if tied {
		return General
	}
	return best
}
