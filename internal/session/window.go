package session

import "slices"

// charsPerToken is the heuristic ratio used for token estimation.
const charsPerToken = 4

// Window tracks the most recent transcript lines sent to the model as
// conversational context. Lines are kept in arrival order; once the limit is
// reached the oldest line is dropped.
//
// Window is not safe for concurrent use. It belongs to the session loop.
type Window struct {
	limit int
	lines []string
	chars int
}

// NewWindow returns a window holding at most limit lines. A non-positive
// limit selects 6.
func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = 6
	}
	return &Window{limit: limit, lines: make([]string, 0, limit)}
}

// Push appends line, dropping the oldest line when full.
func (w *Window) Push(line string) {
	if len(w.lines) == w.limit {
		w.chars -= len(w.lines[0])
		w.lines = slices.Delete(w.lines, 0, 1)
	}
	w.lines = append(w.lines, line)
	w.chars += len(line)
}

// Lines returns a copy of the window, oldest first.
func (w *Window) Lines() []string { return slices.Clone(w.lines) }

// Len returns the number of lines held.
func (w *Window) Len() int { return len(w.lines) }

// TokenEstimate returns a rough token count for the window using the
// 1-token-per-4-characters heuristic.
func (w *Window) TokenEstimate() int { return w.chars / charsPerToken }

// Reset clears the window.
func (w *Window) Reset() {
	w.lines = w.lines[:0]
	w.chars = 0
}
