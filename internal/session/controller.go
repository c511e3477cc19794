package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/internal/dispatch"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/health"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/observe"
	"github.com/tomwolfe/ConvoCue/internal/persona"
	"github.com/tomwolfe/ConvoCue/internal/suggest"
)

// eventQueueSize bounds the number of enqueued but unprocessed events.
const eventQueueSize = 256

// Meta is optional per-chunk audio metadata.
type Meta struct {
	// RMS is the chunk loudness. Zero means unknown and skips speaker
	// attribution for the chunk.
	RMS float64
}

// state is the loop-owned conversation state that is reinitialised on reset.
type state struct {
	id        string
	startedAt time.Time
	persona   persona.Persona

	transcript  []Entry
	insights    Insights
	consecutive int

	suggestion  string
	processing  bool
	intent      intent.Label
	speakerHint bool

	summary     string
	summarizing bool
	summaryErr  string
	lastErr     string

	lastActivity time.Time
	silenceFired bool
}

// Controller runs one conversation. Create it with [New] and start its loop
// with [Controller.Run]; every other method may be called from any goroutine.
type Controller struct {
	cfg       Config
	clock     Clock
	rand      Rand
	readiness *health.Readiness
	metrics   *observe.Metrics
	firstID   string

	events  chan func()
	done    chan struct{}
	running atomic.Bool

	// ctx is handed to provider calls and cancelled when Run returns.
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned.
	dispatcher *dispatch.Dispatcher
	buffer     *audio.Buffer
	attributor *audio.Attributor
	energy     *energy.Model
	cache      *suggest.Cache
	history    *suggest.History
	window     *Window
	flushTimer dispatch.Timer
	idleTimer  dispatch.Timer
	dirty      bool
	st         state

	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

// New builds a Controller with a freshly started session.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if cfg.Personas == nil {
		return nil, errors.New("session: persona catalog is required")
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:    cfg,
		clock:  systemClock{},
		rand:   globalRand{},
		events: make(chan func(), eventQueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[chan Snapshot]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	c.dispatcher = dispatch.New(
		dispatch.WithAfterFunc(c.after),
		dispatch.WithClock(c.clock.Now),
		dispatch.WithSettleHook(func(t dispatch.Task) {
			c.metrics.RecordTask(c.ctx, string(t.Kind), t.Status.String())
		}),
	)
	c.buffer = audio.NewBuffer(cfg.FlushSamples)
	c.attributor = audio.NewAttributor(cfg.Speaker, c.rand)
	c.energy = energy.New(cfg.Energy)
	c.cache = suggest.New(cfg.CacheTTL, cfg.CacheCapacity)
	c.history = suggest.NewHistory(cfg.HistoryDepth, cfg.HistoryWindow, cfg.HistoryRecent)
	c.window = NewWindow(cfg.MessageWindow)

	c.reset()
	if c.firstID != "" {
		c.st.id = c.firstID
	}
	c.publish()
	return c, nil
}

// Run processes events until ctx is cancelled. It may be called only once.
// In-flight provider calls are cancelled and all timers stopped on return.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("session: Run called twice")
	}
	defer close(c.done)
	defer c.cancel()
	defer c.stopTimers()

	c.armIdle()
	slog.Debug("session: loop started", "session_id", c.st.id)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("session: loop stopped", "session_id", c.st.id)
			return nil
		case fn := <-c.events:
			fn()
			if c.dirty {
				c.dirty = false
				c.publish()
			}
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// ID returns the current session id.
func (c *Controller) ID() string { return c.Snapshot().SessionID }

// post enqueues fn for the loop. It reports false once the loop has exited.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// do enqueues a state change and marks the snapshot for republication.
func (c *Controller) do(fn func()) error {
	if !c.post(func() {
		fn()
		c.dirty = true
	}) {
		return ErrClosed
	}
	return nil
}

// after schedules f on the loop after d.
func (c *Controller) after(d time.Duration, f func()) dispatch.Timer {
	return c.clock.AfterFunc(d, func() { c.post(f) })
}

// Sync waits until every event enqueued before the call has been processed.
func (c *Controller) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if !c.post(func() { close(reached) }) {
		return ErrClosed
	}
	select {
	case <-reached:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins a new session, discarding the current one.
func (c *Controller) Start() error { return c.do(c.reset) }

// Reset is an alias of [Controller.Start].
func (c *Controller) Reset() error { return c.do(c.reset) }

// IngestAudio feeds one chunk of mono PCM at the configured sample rate. The
// controller takes ownership of chunk.
func (c *Controller) IngestAudio(chunk []float32, meta Meta) error {
	if !c.post(func() { c.ingestAudio(chunk, meta) }) {
		return ErrClosed
	}
	return nil
}

// IngestText processes one utterance as if it had just been transcribed.
func (c *Controller) IngestText(text string) error {
	return c.do(func() { c.ingestText(text) })
}

// SetPersona switches the coaching persona. Unknown ids are rejected.
func (c *Controller) SetPersona(id string) error {
	p, err := c.cfg.Personas.Get(id)
	if err != nil {
		return err
	}
	return c.do(func() { c.st.persona = p })
}

// SetSensitivity changes the drain sensitivity ("low", "normal", "high").
func (c *Controller) SetSensitivity(level string) error {
	s, err := energy.ParseSensitivity(level)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return c.do(func() { c.energy.SetSensitivity(s) })
}

// TogglePause pauses or resumes passive energy drain.
func (c *Controller) TogglePause() error {
	return c.do(func() { c.energy.TogglePause() })
}

// ToggleSpeaker flips the speaker assignment by hand.
func (c *Controller) ToggleSpeaker() error {
	return c.do(func() {
		c.attributor.Toggle()
		c.st.consecutive = 0
		c.st.speakerHint = false
	})
}

// Recharge adds amount to the social battery.
func (c *Controller) Recharge(amount float64) error {
	return c.do(func() { c.energy.Recharge(amount) })
}

// Dismiss clears the current suggestion.
func (c *Controller) Dismiss() error {
	return c.do(func() {
		c.st.suggestion = ""
		c.st.processing = false
	})
}

// Summarize requests an end-of-session summary. It does nothing for an empty
// transcript.
func (c *Controller) Summarize() error { return c.do(c.summarize) }

// Refresh republishes the snapshot, picking up readiness changes.
func (c *Controller) Refresh() error { return c.do(func() {}) }

// reset reinitialises the session. Runs on the loop.
func (c *Controller) reset() {
	c.dispatcher.Reset()
	c.stopFlushTimer()
	c.buffer.Reset()
	c.cache.Clear()
	c.history.Clear()
	c.window.Reset()
	c.energy.Reset()
	c.attributor.Reset()

	now := c.clock.Now()
	c.st = state{
		id:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		startedAt:    now,
		persona:      c.cfg.Personas.Default(),
		intent:       intent.General,
		insights:     insights(nil),
		lastActivity: now,
	}
	slog.Info("session: started", "session_id", c.st.id, "persona", c.st.persona.ID)
}

func (c *Controller) stopFlushTimer() {
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
}

func (c *Controller) stopTimers() {
	c.stopFlushTimer()
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	c.dispatcher.Reset()
}

// ready reports whether the named capability is configured and loaded.
func (c *Controller) ready(service string) bool {
	switch service {
	case health.ServiceSTT:
		if c.cfg.STT == nil {
			return false
		}
	case health.ServiceLLM:
		if c.cfg.Suggester == nil {
			return false
		}
	}
	return c.readiness == nil || c.readiness.Report().Ready(service)
}

// touch records user activity and ends the current silence episode.
func (c *Controller) touch() {
	c.st.lastActivity = c.clock.Now()
	c.st.silenceFired = false
}
