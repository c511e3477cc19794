package dispatch_test

import (
	"testing"
	"time"

	"github.com/tomwolfe/ConvoCue/internal/dispatch"
)

// fakeTimers collects scheduled callbacks so tests can fire them by hand.
type fakeTimers struct {
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) dispatch.Timer {
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) fire(i int) {
	if t := ft.timers[i]; !t.stopped {
		t.f()
	}
}

func TestDispatcher_MonotonicIDs(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	var last uint64
	for _, k := range []dispatch.Kind{dispatch.KindSTT, dispatch.KindSuggest, dispatch.KindSTT, dispatch.KindSummarize} {
		task := d.Issue(k)
		if task.ID <= last {
			t.Fatalf("id %d not greater than %d", task.ID, last)
		}
		last = task.ID
	}
	d.Reset()
	if task := d.Issue(dispatch.KindSTT); task.ID <= last {
		t.Errorf("id after Reset = %d, want > %d", task.ID, last)
	}
}

func TestDispatcher_LatestIssuedDiscardsOlder(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	t5 := d.Issue(dispatch.KindSuggest)
	t6 := d.Issue(dispatch.KindSuggest)

	if _, out := d.Resolve(t6.ID); out != dispatch.Accepted {
		t.Fatalf("newest resolve: outcome %v, want accepted", out)
	}
	task, out := d.Resolve(t5.ID)
	if out != dispatch.Discarded {
		t.Errorf("older resolve: outcome %v, want discarded", out)
	}
	if task.Status != dispatch.StatusStale {
		t.Errorf("older status = %v, want stale", task.Status)
	}
}

func TestDispatcher_LatestIssuedOlderFirst(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	t5 := d.Issue(dispatch.KindSuggest)
	d.Issue(dispatch.KindSuggest)

	// Even arriving first, an overtaken suggestion is stale.
	if _, out := d.Resolve(t5.ID); out != dispatch.Discarded {
		t.Errorf("outcome %v, want discarded", out)
	}
}

func TestDispatcher_InOrderKeepsSequential(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	a := d.Issue(dispatch.KindSTT)
	b := d.Issue(dispatch.KindSTT)
	c := d.Issue(dispatch.KindSTT)

	if _, out := d.Resolve(a.ID); out != dispatch.Accepted {
		t.Errorf("first flush: outcome %v, want accepted", out)
	}
	if _, out := d.Resolve(c.ID); out != dispatch.Accepted {
		t.Errorf("third flush: outcome %v, want accepted", out)
	}
	if _, out := d.Resolve(b.ID); out != dispatch.Discarded {
		t.Errorf("second flush after third: outcome %v, want discarded", out)
	}
}

func TestDispatcher_KindsAreIndependent(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	s := d.Issue(dispatch.KindSuggest)
	d.Issue(dispatch.KindSTT)
	d.Issue(dispatch.KindSummarize)

	if _, out := d.Resolve(s.ID); out != dispatch.Accepted {
		t.Errorf("suggestion outcome %v, want accepted", out)
	}
}

func TestDispatcher_Fail(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	old := d.Issue(dispatch.KindSuggest)
	cur := d.Issue(dispatch.KindSuggest)

	if task, out := d.Fail(cur.ID); out != dispatch.Accepted || task.Status != dispatch.StatusFailed {
		t.Errorf("Fail(current) = %v, %v; want failed, accepted", task.Status, out)
	}
	if task, out := d.Fail(old.ID); out != dispatch.Discarded || task.Status != dispatch.StatusStale {
		t.Errorf("Fail(old) = %v, %v; want stale, discarded", task.Status, out)
	}
}

func TestDispatcher_ResetMakesEverythingStale(t *testing.T) {
	t.Parallel()

	ft := &fakeTimers{}
	var settled []dispatch.Task
	d := dispatch.New(
		dispatch.WithAfterFunc(ft.AfterFunc),
		dispatch.WithSettleHook(func(t dispatch.Task) { settled = append(settled, t) }),
	)

	sug := d.Issue(dispatch.KindSuggest, dispatch.WithSoftTimeout(3*time.Second, func(dispatch.Task) {
		t.Error("soft timeout fired after Reset")
	}))
	stt := d.Issue(dispatch.KindSTT)
	gen := d.Generation()

	d.Reset()

	if d.Generation() != gen+1 {
		t.Errorf("Generation = %d, want %d", d.Generation(), gen+1)
	}
	if !ft.timers[0].stopped {
		t.Error("soft-timeout timer not stopped by Reset")
	}
	ft.fire(0)

	for _, id := range []uint64{sug.ID, stt.ID} {
		if _, out := d.Resolve(id); out != dispatch.Discarded {
			t.Errorf("Resolve(%d) after Reset: outcome %v, want discarded", id, out)
		}
	}
	if len(settled) != 2 {
		t.Fatalf("settle hook called %d times, want 2", len(settled))
	}
	for _, s := range settled {
		if s.Status != dispatch.StatusStale {
			t.Errorf("task %d settled as %v, want stale", s.ID, s.Status)
		}
	}
	if d.Pending(dispatch.KindSuggest) != 0 || d.Pending(dispatch.KindSTT) != 0 {
		t.Error("tasks still pending after Reset")
	}
}

func TestDispatcher_SoftTimeout(t *testing.T) {
	t.Parallel()

	ft := &fakeTimers{}
	d := dispatch.New(dispatch.WithAfterFunc(ft.AfterFunc))

	var fired []uint64
	onTimeout := func(task dispatch.Task) { fired = append(fired, task.ID) }

	first := d.Issue(dispatch.KindSuggest, dispatch.WithSoftTimeout(3*time.Second, onTimeout))
	second := d.Issue(dispatch.KindSuggest, dispatch.WithSoftTimeout(3*time.Second, onTimeout))

	if ft.timers[0].d != 3*time.Second {
		t.Errorf("timer duration = %v, want 3s", ft.timers[0].d)
	}

	// The overtaken task times out silently.
	ft.fire(0)
	ft.fire(1)
	if len(fired) != 1 || fired[0] != second.ID {
		t.Fatalf("fired = %v, want [%d]", fired, second.ID)
	}

	task, ok := d.Get(second.ID)
	if !ok || task.Status != dispatch.StatusTimedOut {
		t.Errorf("status after soft timeout = %v, want timed-out", task.Status)
	}

	// A timed-out task can still resolve.
	if task, out := d.Resolve(second.ID); out != dispatch.Accepted || task.Status != dispatch.StatusResolved {
		t.Errorf("Resolve after timeout = %v, %v; want resolved, accepted", task.Status, out)
	}
	if _, out := d.Resolve(first.ID); out != dispatch.Discarded {
		t.Errorf("Resolve(first) outcome %v, want discarded", out)
	}
}

func TestDispatcher_ResolveStopsTimer(t *testing.T) {
	t.Parallel()

	ft := &fakeTimers{}
	d := dispatch.New(dispatch.WithAfterFunc(ft.AfterFunc))
	task := d.Issue(dispatch.KindSuggest, dispatch.WithSoftTimeout(time.Second, func(dispatch.Task) {
		t.Error("soft timeout fired after resolve")
	}))

	d.Resolve(task.ID)
	if !ft.timers[0].stopped {
		t.Error("timer not stopped on resolve")
	}
	ft.fire(0)
}

func TestDispatcher_UnknownID(t *testing.T) {
	t.Parallel()

	d := dispatch.New()
	if _, out := d.Resolve(42); out != dispatch.Discarded {
		t.Errorf("unknown id outcome %v, want discarded", out)
	}
}

func TestDispatcher_Clock(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := dispatch.New(dispatch.WithClock(func() time.Time { return at }))
	if task := d.Issue(dispatch.KindSTT); !task.IssuedAt.Equal(at) {
		t.Errorf("IssuedAt = %v, want %v", task.IssuedAt, at)
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	want := map[dispatch.Status]string{
		dispatch.StatusPending:  "pending",
		dispatch.StatusTimedOut: "timed-out",
		dispatch.StatusResolved: "resolved",
		dispatch.StatusStale:    "stale",
		dispatch.StatusFailed:   "failed",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), name)
		}
	}
}
