package suggest

import "time"

const (
	DefaultHistoryDepth  = 5
	DefaultHistoryWindow = 30 * time.Second
	DefaultRecentLimit   = 3
)

type record struct {
	intent string
	at     time.Time
}

// History is a short trailing record of classified intents.
type History struct {
	depth   int
	window  time.Duration
	limit   int
	records []record
}

// NewHistory returns a History keeping at most depth records and reporting at
// most limit intents newer than window. Non-positive arguments select the
// defaults.
func NewHistory(depth int, window time.Duration, limit int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &History{depth: depth, window: window, limit: limit}
}

// Record appends an intent observed at at, dropping the oldest record when
// the depth is exceeded.
func (h *History) Record(intent string, at time.Time) {
	h.records = append(h.records, record{intent: intent, at: at})
	if over := len(h.records) - h.depth; over > 0 {
		h.records = append(h.records[:0], h.records[over:]...)
	}
}

// Recent returns up to limit of the most recent intents recorded less than
// window before now, oldest first.
func (h *History) Recent(now time.Time) []string {
	var out []string
	for _, r := range h.records {
		if now.Sub(r.at) < h.window {
			out = append(out, r.intent)
		}
	}
	if len(out) > h.limit {
		out = out[len(out)-h.limit:]
	}
	return out
}

// Len returns the number of stored records.
func (h *History) Len() int { return len(h.records) }

// Clear drops all records.
func (h *History) Clear() { h.records = h.records[:0] }
