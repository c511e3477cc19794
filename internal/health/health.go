// Package health serves the liveness and readiness endpoints and tracks the
// load state of the recognition and generation capabilities.
//
//   - /healthz answers 200 while the process can serve HTTP.
//   - /readyz answers 200 only when every capability is loaded and every
//     extra [Checker] passes. Its body carries the capability [Report] so a
//     client can show load progress while it waits.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe.
type Checker struct {
	// Name is the key of this check in the JSON response.
	Name string

	// Check returns nil when healthy. It must respect context cancellation.
	Check func(ctx context.Context) error
}

type result struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime,omitempty"`
	Checks       map[string]string `json:"checks,omitempty"`
	Capabilities *Report           `json:"capabilities,omitempty"`
}

// Handler serves /healthz and /readyz.
type Handler struct {
	readiness *Readiness
	checkers  []Checker
	started   time.Time
}

// New creates a [Handler]. When r is non-nil its [Readiness.Checker] gates
// /readyz and its report is included in the response. checkers run
// concurrently on every /readyz request.
func New(r *Readiness, checkers ...Checker) *Handler {
	h := &Handler{readiness: r, started: time.Now()}
	if r != nil {
		h.checkers = append(h.checkers, r.Checker())
	}
	h.checkers = append(h.checkers, checkers...)
	return h
}

// Healthz always returns 200 OK with the process uptime.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz returns 200 when every checker passes and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		if errs[i] != nil {
			res.Checks[c.Name] = "fail: " + errs[i].Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	if h.readiness != nil {
		rep := h.readiness.Report()
		res.Capabilities = &rep
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
