package dispatch

import (
	"log/slog"
	"time"
)

// Timer is a cancellable pending callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. The session loop supplies an
// implementation that runs f on the loop goroutine.
type AfterFunc func(d time.Duration, f func()) Timer

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithPolicies overrides the staleness policy for the given kinds.
func WithPolicies(p map[Kind]Policy) Option {
	return func(d *Dispatcher) {
		for k, v := range p {
			d.policies[k] = v
		}
	}
}

// WithAfterFunc replaces the timer factory. The default wraps
// [time.AfterFunc], whose callbacks run on their own goroutine; anything but
// single-goroutine tests should supply a loop-bound implementation.
func WithAfterFunc(f AfterFunc) Option {
	return func(d *Dispatcher) {
		d.afterFunc = f
	}
}

// WithClock replaces the clock used to stamp IssuedAt.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithSettleHook registers a function called whenever a task reaches a
// terminal state.
func WithSettleHook(fn func(Task)) Option {
	return func(d *Dispatcher) {
		d.onSettle = fn
	}
}

// IssueOption configures a single [Dispatcher.Issue] call.
type IssueOption func(*issueConfig)

type issueConfig struct {
	softTimeout time.Duration
	onTimeout   func(Task)
}

// WithSoftTimeout arms a timer that marks the task timed out after d and
// calls fn, provided the task is still the newest pending one of its kind.
// The request itself is not cancelled.
func WithSoftTimeout(d time.Duration, fn func(Task)) IssueOption {
	return func(c *issueConfig) {
		c.softTimeout = d
		c.onTimeout = fn
	}
}

type entry struct {
	task  Task
	timer Timer
}

// Dispatcher issues task ids and arbitrates responses.
//
// Dispatcher is not safe for concurrent use. It belongs to a single session
// loop, and timer callbacks created through [AfterFunc] must run on that same
// loop.
type Dispatcher struct {
	policies  map[Kind]Policy
	afterFunc AfterFunc
	now       func() time.Time
	onSettle  func(Task)

	nextID      uint64
	generation  uint64
	inflight    map[uint64]*entry
	lastIssued  map[Kind]uint64
	lastApplied map[Kind]uint64
}

// New returns a Dispatcher with the default policies.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		policies: DefaultPolicies(),
		afterFunc: func(dur time.Duration, f func()) Timer {
			return time.AfterFunc(dur, f)
		},
		now:         time.Now,
		inflight:    make(map[uint64]*entry),
		lastIssued:  make(map[Kind]uint64),
		lastApplied: make(map[Kind]uint64),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Issue registers a new pending task of kind and returns it.
func (d *Dispatcher) Issue(kind Kind, opts ...IssueOption) Task {
	var cfg issueConfig
	for _, o := range opts {
		o(&cfg)
	}

	d.nextID++
	e := &entry{task: Task{
		ID:         d.nextID,
		Kind:       kind,
		Generation: d.generation,
		IssuedAt:   d.now(),
		Status:     StatusPending,
	}}
	d.inflight[e.task.ID] = e
	d.lastIssued[kind] = e.task.ID

	if cfg.softTimeout > 0 && cfg.onTimeout != nil {
		id, fn := e.task.ID, cfg.onTimeout
		e.timer = d.afterFunc(cfg.softTimeout, func() { d.softTimeout(id, fn) })
	}
	return e.task
}

func (d *Dispatcher) softTimeout(id uint64, fn func(Task)) {
	e, ok := d.inflight[id]
	if !ok || e.task.Status != StatusPending {
		return
	}
	e.task.Status = StatusTimedOut
	e.timer = nil
	if d.lastIssued[e.task.Kind] != id || e.task.Generation != d.generation {
		return
	}
	fn(e.task)
}

// Resolve reports that task id produced a result. The returned outcome tells
// the caller whether to apply it.
func (d *Dispatcher) Resolve(id uint64) (Task, Outcome) {
	return d.settle(id, StatusResolved)
}

// Fail reports that task id ended in an error. Accepted means the error
// concerns the current context and should be surfaced.
func (d *Dispatcher) Fail(id uint64) (Task, Outcome) {
	return d.settle(id, StatusFailed)
}

func (d *Dispatcher) settle(id uint64, status Status) (Task, Outcome) {
	e, ok := d.inflight[id]
	if !ok {
		slog.Debug("dispatch: response for unknown task discarded", "task_id", id)
		return Task{ID: id, Status: StatusStale}, Discarded
	}
	delete(d.inflight, id)
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if d.isStale(e.task) {
		e.task.Status = StatusStale
		slog.Debug("dispatch: stale response discarded",
			"task_id", id,
			"kind", e.task.Kind,
			"latest", d.lastIssued[e.task.Kind])
		d.settled(e.task)
		return e.task, Discarded
	}

	e.task.Status = status
	if status == StatusResolved && id > d.lastApplied[e.task.Kind] {
		d.lastApplied[e.task.Kind] = id
	}
	d.settled(e.task)
	return e.task, Accepted
}

func (d *Dispatcher) isStale(t Task) bool {
	if t.Generation != d.generation {
		return true
	}
	switch d.policies[t.Kind] {
	case InOrder:
		return t.ID < d.lastApplied[t.Kind]
	default:
		return t.ID < d.lastIssued[t.Kind]
	}
}

func (d *Dispatcher) settled(t Task) {
	if d.onSettle != nil {
		d.onSettle(t)
	}
}

// Reset stops every soft-timeout timer, marks all in-flight tasks stale and
// advances the generation. Ids keep increasing across resets.
func (d *Dispatcher) Reset() {
	for id, e := range d.inflight {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.task.Status = StatusStale
		d.settled(e.task)
		delete(d.inflight, id)
	}
	d.generation++
	clear(d.lastIssued)
	clear(d.lastApplied)
}

// Get returns the in-flight task with the given id.
func (d *Dispatcher) Get(id uint64) (Task, bool) {
	e, ok := d.inflight[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// Pending returns the number of in-flight tasks of kind.
func (d *Dispatcher) Pending(kind Kind) int {
	n := 0
	for _, e := range d.inflight {
		if e.task.Kind == kind {
			n++
		}
	}
	return n
}

// Latest returns the id of the most recent task of kind issued in the
// current generation, or 0.
func (d *Dispatcher) Latest(kind Kind) uint64 { return d.lastIssued[kind] }

// Generation returns the current generation.
func (d *Dispatcher) Generation() uint64 { return d.generation }
