package intent

// DefaultThreshold is the score a label must exceed to win.
const DefaultThreshold = 0.7

// DefaultTable returns the built-in keyword and nuance table. Callers may
// modify the returned value; each call builds a fresh copy.
func DefaultTable() Table {
	return Table{
		Threshold: DefaultThreshold,
		Categories: []Category{
			{
				Label:  Social,
				Weight: 1.0,
				Keywords: []string{
					"hello", "hi", "how are you", "nice to meet", "weather", "party", "weekend",
					"name", "thanks", "cool", "awesome", "fun", "plans", "hobbies", "family",
					"vacation", "trip", "recommend", "favorite", "dinner", "lunch", "drink",
				},
			},
			{
				Label:  Professional,
				Weight: 1.2,
				Keywords: []string{
					"project", "meeting", "deadline", "report", "client", "strategy", "goal",
					"agenda", "update", "feedback", "workflow", "resource", "budget", "roadmap",
					"stakeholder", "quarterly", "deliverable", "action item", "sync", "call",
					"colleague", "manager", "director", "presentation",
				},
			},
			{
				Label:  Conflict,
				Weight: 1.5,
				Keywords: []string{
					"disagree", "wrong", "mistake", "fail", "issue", "problem", "not true",
					"actually", "unacceptable", "frustrated", "no way", "impossible",
					"refuse", "blame", "error", "delay", "broken", "unfair", "uncomfortable",
					"nonsense", "ridiculous", "offended", "annoyed", "hate", "stupid", "stop",
				},
			},
			{
				Label:  Empathy,
				Weight: 1.3,
				Keywords: []string{
					"understand", "feel", "difficult", "hard", "support", "help", "sorry to hear",
					"bummer", "that sucks", "tough", "exhausting", "sorry", "apologize",
					"listen", "there for you", "hear you", "valid", "mean a lot", "appreciate",
					"supportive", "kind", "brave", "tired", "drained", "burned out", "rough",
				},
			},
			{
				Label:  Positive,
				Weight: 0.8,
				Keywords: []string{
					"great", "awesome", "excellent", "wonderful", "cool", "love", "happy",
					"excited", "good", "perfect", "nice", "thanks", "thank you", "appreciate",
					"fantastic", "brilliant", "glad", "celebrate", "success", "win",
				},
			},
		},
		Nuances: []Nuance{
			{
				Name:    "hedging",
				Pattern: `not sure|maybe|perhaps`,
				Adjust:  map[Label]float64{Social: 0.5},
			},
			{
				Name:    "contrastive_apology",
				Pattern: `sorry but|sorry, but|i hear you but`,
				Adjust:  map[Label]float64{Conflict: 2.5, Empathy: -1.0},
			},
			{
				Name:    "negated_complaint",
				Pattern: `not bad|no problem|not a problem|nothing wrong|can't complain|no worries`,
				Adjust:  map[Label]float64{Conflict: -1.5, Positive: 1.0, Empathy: 0.5},
			},
			{
				Name:       "intensifier",
				Pattern:    `really|very|so much|extremely|totally|absolutely`,
				Multiplier: 1.2,
			},
		},
	}
}

var defaultClassifier = MustNew(DefaultTable())

// Classify scores text with the built-in table.
func Classify(text string) Result {
	return defaultClassifier.Classify(text)
}
