package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Service names tracked by a [Readiness].
const (
	ServiceSTT = "stt"
	ServiceLLM = "llm"
)

// Stage is the load state of one service.
type Stage string

const (
	StageLoading Stage = "loading"
	StageReady   Stage = "ready"
	StageFailed  Stage = "failed"
)

// Level summarises readiness across all tracked services.
type Level string

const (
	LevelLoading Level = "loading"
	LevelPartial Level = "partial"
	LevelFull    Level = "full"
)

// ErrNotReady is returned by the readiness checker while any service is not
// ready.
var ErrNotReady = errors.New("health: capabilities not ready")

// ServiceLoadError reports that constructing or loading a service failed.
type ServiceLoadError struct {
	Service string
	Err     error
}

func (e *ServiceLoadError) Error() string {
	return fmt.Sprintf("health: load %s: %v", e.Service, e.Err)
}

func (e *ServiceLoadError) Unwrap() error { return e.Err }

// ServiceStatus is the externally visible state of one service.
type ServiceStatus struct {
	Name     string  `json:"name"`
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// Report is a point-in-time copy of a [Readiness].
type Report struct {
	Level    Level           `json:"level"`
	Services []ServiceStatus `json:"services"`
}

// Ready reports whether the named service is ready.
func (r Report) Ready(name string) bool {
	for _, s := range r.Services {
		if s.Name == name {
			return s.Stage == StageReady
		}
	}
	return false
}

// Readiness tracks the load stage and progress of named services. It is safe
// for concurrent use. Listeners are invoked outside the lock, in registration
// order, after every change.
type Readiness struct {
	mu        sync.Mutex
	services  map[string]*ServiceStatus
	listeners []func(Report)
}

// NewReadiness returns a tracker with every named service in the loading
// stage at progress 0.
func NewReadiness(names ...string) *Readiness {
	r := &Readiness{services: make(map[string]*ServiceStatus, len(names))}
	for _, n := range names {
		r.services[n] = &ServiceStatus{Name: n, Stage: StageLoading}
	}
	return r
}

// OnChange registers fn to be called with the new report after each change.
func (r *Readiness) OnChange(fn func(Report)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// SetProgress records load progress in [0,1] for a loading service.
func (r *Readiness) SetProgress(name string, progress float64) {
	progress = max(0, min(1, progress))
	r.update(name, func(s *ServiceStatus) {
		s.Stage = StageLoading
		s.Progress = progress
		s.Error = ""
	})
}

// MarkReady moves the service to the ready stage.
func (r *Readiness) MarkReady(name string) {
	r.update(name, func(s *ServiceStatus) {
		s.Stage = StageReady
		s.Progress = 1
		s.Error = ""
	})
}

// MarkFailed records a persistent load failure. A [ServiceLoadError] is
// unwrapped so the message is not prefixed twice.
func (r *Readiness) MarkFailed(name string, err error) {
	var le *ServiceLoadError
	if errors.As(err, &le) {
		err = le.Err
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	r.update(name, func(s *ServiceStatus) {
		s.Stage = StageFailed
		s.Error = msg
	})
}

func (r *Readiness) update(name string, fn func(*ServiceStatus)) {
	r.mu.Lock()
	s, ok := r.services[name]
	if !ok {
		s = &ServiceStatus{Name: name, Stage: StageLoading}
		r.services[name] = s
	}
	fn(s)
	rep := r.reportLocked()
	listeners := append(([]func(Report))(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(rep)
	}
}

// Report returns the current state.
func (r *Readiness) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reportLocked()
}

func (r *Readiness) reportLocked() Report {
	rep := Report{Services: make([]ServiceStatus, 0, len(r.services))}
	ready := 0
	for _, s := range r.services {
		rep.Services = append(rep.Services, *s)
		if s.Stage == StageReady {
			ready++
		}
	}
	sort.Slice(rep.Services, func(i, j int) bool {
		return rep.Services[i].Name < rep.Services[j].Name
	})

	switch {
	case len(r.services) > 0 && ready == len(r.services):
		rep.Level = LevelFull
	case ready > 0:
		rep.Level = LevelPartial
	default:
		rep.Level = LevelLoading
	}
	return rep
}

// Checker returns a readiness probe that fails until every service is ready.
func (r *Readiness) Checker() Checker {
	return Checker{
		Name: "capabilities",
		Check: func(context.Context) error {
			rep := r.Report()
			if rep.Level == LevelFull {
				return nil
			}
			var pending []string
			for _, s := range rep.Services {
				if s.Stage != StageReady {
					pending = append(pending, s.Name+"="+string(s.Stage))
				}
			}
			return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(pending, ", "))
		},
	}
}
