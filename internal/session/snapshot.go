package session

import (
	"maps"
	"slices"
	"time"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/health"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/persona"
)

// Entry is one transcript line.
type Entry struct {
	Text      string        `json:"text"`
	Speaker   audio.Speaker `json:"speaker"`
	Timestamp time.Time     `json:"timestamp"`
	Intent    intent.Label  `json:"intent"`
}

// Insights summarise the intents seen so far.
type Insights struct {
	// Distribution maps intent label to transcript entry count.
	Distribution map[string]int `json:"distribution"`

	// Dominant is the most frequent intent, or "" for an empty transcript.
	Dominant string `json:"dominant,omitempty"`
}

// Snapshot is a point-in-time copy of everything a presentation layer shows.
// Snapshots are immutable once published. Transcript shares storage with
// later snapshots and must not be modified.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`

	Suggestion string       `json:"suggestion"`
	Processing bool         `json:"processing"`
	Intent     intent.Label `json:"intent"`

	Battery     float64            `json:"battery"`
	LastDrain   float64            `json:"last_drain"`
	Exhausted   bool               `json:"exhausted"`
	Paused      bool               `json:"paused"`
	Sensitivity energy.Sensitivity `json:"sensitivity"`

	Persona persona.Persona `json:"persona"`

	Speaker     audio.Speaker `json:"speaker"`
	Consecutive int           `json:"consecutive"`

	// SpeakerHint is set when the model suspects the last line was
	// attributed to the wrong speaker.
	SpeakerHint bool `json:"speaker_toggle_hint"`

	Transcript []Entry `json:"transcript"`

	Summary      string `json:"summary,omitempty"`
	Summarizing  bool   `json:"summarizing"`
	SummaryError string `json:"summary_error,omitempty"`

	LastError string `json:"last_error,omitempty"`

	QuickActions []coach.QuickAction `json:"quick_actions"`
	Readiness    health.Report       `json:"readiness"`
	Insights     Insights            `json:"insights"`
}

// insights computes the intent distribution of entries.
func insights(entries []Entry) Insights {
	in := Insights{Distribution: make(map[string]int)}
	for _, e := range entries {
		in.add(string(e.Intent))
	}
	return in
}

// add counts one entry. Ties for the dominant intent go to the label that
// reached the winning count first.
func (in *Insights) add(label string) {
	in.Distribution[label]++
	if in.Distribution[label] > in.Distribution[in.Dominant] {
		in.Dominant = label
	}
}

// snapshot builds a Snapshot from loop state. Must run on the loop.
func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		SessionID:    c.st.id,
		StartedAt:    c.st.startedAt,
		Suggestion:   c.st.suggestion,
		Processing:   c.st.processing,
		Intent:       c.st.intent,
		Battery:      c.energy.Value(),
		LastDrain:    c.energy.LastDrain(),
		Exhausted:    c.energy.IsExhausted(),
		Paused:       c.energy.Paused(),
		Sensitivity:  c.energy.Sensitivity(),
		Persona:      c.st.persona,
		Speaker:      c.attributor.Current(),
		Consecutive:  c.st.consecutive,
		SpeakerHint:  c.st.speakerHint,
		Transcript:   slices.Clip(c.st.transcript),
		Summary:      c.st.summary,
		Summarizing:  c.st.summarizing,
		SummaryError: c.st.summaryErr,
		LastError:    c.st.lastErr,
		QuickActions: slices.Clone(c.cfg.QuickActions.For(c.st.intent, c.energy.IsExhausted())),
		Insights:     c.st.insights,
	}
	s.Insights.Distribution = maps.Clone(c.st.insights.Distribution)
	if c.readiness != nil {
		s.Readiness = c.readiness.Report()
	}
	return s
}

// publish stores a fresh snapshot and offers it to subscribers. Slow
// subscribers only ever see the latest snapshot.
func (c *Controller) publish() {
	s := c.snapshot()

	c.mu.Lock()
	c.snap = s
	subs := make([]chan Snapshot, 0, len(c.subs))
	for ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Snapshot returns the most recently published state. Safe for concurrent
// use.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one, and a function that ends the subscription. The
// channel holds at most one pending snapshot; older ones are replaced.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	ch <- c.snap
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}
