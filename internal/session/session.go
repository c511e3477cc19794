// Package session implements the per-conversation coaching pipeline.
//
// A [Controller] owns one conversation: its transcript, social energy,
// suggestion cache, speaker heuristic, audio buffer and task dispatcher. All
// of that state is mutated on a single goroutine started by
// [Controller.Run]; the public methods only enqueue work for it. Speech
// recognition, suggestion and summary requests run on their own goroutines
// and report back by enqueueing their results, so the loop never waits on a
// provider and a slow or failing service can never wedge a session.
//
// Observers read state through immutable [Snapshot] values, either on demand
// with [Controller.Snapshot] or as a stream from [Controller.Subscribe].
package session

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/dispatch"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/health"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/observe"
	"github.com/tomwolfe/ConvoCue/internal/persona"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// Suggester produces one coaching suggestion. [*coach.Suggester] satisfies it.
type Suggester interface {
	Suggest(ctx context.Context, req coach.SuggestRequest) (coach.Suggestion, error)
}

// Config wires a [Controller] to its collaborators and tunables.
// Zero-valued tunables take the defaults noted on each field.
type Config struct {
	// STT transcribes flushed audio. When nil, audio input is ignored and only
	// text input is processed.
	STT stt.Provider

	// Suggester and Summariser reach the language model. Either may be nil,
	// which disables suggestions or summaries respectively.
	Suggester  Suggester
	Summariser coach.Summariser

	// Personas is required.
	Personas *persona.Catalog

	// Classifier defaults to the built-in intent table.
	Classifier *intent.Classifier

	// Shortcuts may be nil.
	Shortcuts *intent.Shortcuts

	// QuickActions defaults to [coach.DefaultQuickActions].
	QuickActions coach.QuickActions

	Energy  energy.Config
	Speaker audio.AttributorConfig

	// SampleRate of incoming audio. Default: 16000.
	SampleRate int

	// Language is passed through to the recognition service.
	Language string

	// FlushSamples and FlushIdle control the audio buffer. Defaults: one
	// second of audio (SampleRate samples) and 300ms.
	FlushSamples int
	FlushIdle    time.Duration

	// CacheTTL and CacheCapacity size the suggestion cache. Defaults: 45s and
	// 75 entries.
	CacheTTL      time.Duration
	CacheCapacity int

	// HistoryDepth, HistoryWindow and HistoryRecent shape the intent history
	// used in cache keys. Defaults: 5 records, 30s, 3 intents.
	HistoryDepth  int
	HistoryWindow time.Duration
	HistoryRecent int

	// MessageWindow is how many transcript lines accompany a suggestion
	// request. Default: 6.
	MessageWindow int

	// SoftTimeout is when a pending suggestion is replaced by a "still
	// thinking" placeholder. Default: 3s.
	SoftTimeout time.Duration

	// IdlePoll and SilenceAfter drive the silence breaker. Defaults: 2s and 8s.
	IdlePoll     time.Duration
	SilenceAfter time.Duration
}

func (c *Config) applyDefaults() {
	if c.Classifier == nil {
		c.Classifier = intent.MustNew(intent.DefaultTable())
	}
	if c.QuickActions == nil {
		c.QuickActions = coach.DefaultQuickActions()
	}
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.FlushSamples <= 0 {
		c.FlushSamples = c.SampleRate
	}
	if c.FlushIdle <= 0 {
		c.FlushIdle = 300 * time.Millisecond
	}
	if c.SoftTimeout <= 0 {
		c.SoftTimeout = 3 * time.Second
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = 2 * time.Second
	}
	if c.SilenceAfter <= 0 {
		c.SilenceAfter = 8 * time.Second
	}
}

// Clock abstracts time for the controller. Callbacks scheduled through
// AfterFunc may run on any goroutine; the controller re-posts them onto its
// loop.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) dispatch.Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) dispatch.Timer {
	return time.AfterFunc(d, f)
}

// Rand is the randomness source for suggestion fading, speaker overrides and
// silence breaker selection. *math/rand/v2.Rand satisfies it. It is only
// used on the loop goroutine.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Option configures a [Controller].
type Option func(*Controller)

// WithClock replaces the wall clock and timer source.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithRand replaces the randomness source.
func WithRand(r Rand) Option {
	return func(ctl *Controller) { ctl.rand = r }
}

// WithReadiness gates audio input and the silence breaker on the capability
// load state tracked by r, and includes its report in every snapshot.
func WithReadiness(r *health.Readiness) Option {
	return func(ctl *Controller) { ctl.readiness = r }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithID sets the id of the first session. Later resets mint fresh ids.
func WithID(id string) Option {
	return func(ctl *Controller) { ctl.firstID = id }
}
