// Package dispatch tracks asynchronous requests to the recognition and
// generation services and decides which of their responses may still change
// visible state.
//
// Every request is a [Task] with a strictly increasing id. Responses are
// handed back to the [Dispatcher], which classifies them as accepted or stale
// according to the task kind's [Policy] and the dispatcher generation. A
// [Dispatcher.Reset] advances the generation, so anything issued before it is
// unconditionally stale.
package dispatch

import "time"

// Kind is the category of work a task performs.
type Kind string

const (
	KindSTT       Kind = "stt"
	KindSuggest   Kind = "llm-suggest"
	KindSummarize Kind = "llm-summarize"
)

// Status is the lifecycle state of a [Task].
type Status int

const (
	StatusPending Status = iota

	// StatusTimedOut marks a task whose soft timeout fired. The request is
	// still live and may resolve.
	StatusTimedOut

	StatusResolved
	StatusStale
	StatusFailed
)

// String returns the status name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusTimedOut:
		return "timed-out"
	case StatusResolved:
		return "resolved"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether s is a terminal state.
func (s Status) Settled() bool {
	return s == StatusResolved || s == StatusStale || s == StatusFailed
}

// Policy decides when a response of a given kind is stale.
type Policy int

const (
	// LatestIssued accepts only the most recently issued task of a kind. Used
	// for suggestions and summaries where only the newest context matters.
	LatestIssued Policy = iota

	// InOrder accepts any response not older than the last accepted one of
	// the same kind. Used for transcription so back-to-back flushes are all
	// kept while out-of-order arrivals are still dropped.
	InOrder
)

// DefaultPolicies returns the per-kind staleness policies.
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindSTT:       InOrder,
		KindSuggest:   LatestIssued,
		KindSummarize: LatestIssued,
	}
}

// Task is one outstanding or settled request.
type Task struct {
	ID         uint64
	Kind       Kind
	Generation uint64
	IssuedAt   time.Time
	Status     Status
}

// Outcome is the dispatcher's verdict on a response.
type Outcome int

const (
	// Accepted means the caller should apply the response.
	Accepted Outcome = iota

	// Discarded means the response is stale or unknown and must be ignored.
	Discarded
)

func (o Outcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "discarded"
}
