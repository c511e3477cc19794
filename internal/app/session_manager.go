package app

import (
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/config"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/health"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/observe"
	"github.com/tomwolfe/ConvoCue/internal/persona"
	"github.com/tomwolfe/ConvoCue/internal/session"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// SessionManagerConfig holds the dependencies of a [SessionManager].
type SessionManagerConfig struct {
	// Config is the initial configuration. Required.
	Config *config.Config

	// STT, Suggester and Summariser are shared by every session. Any may be
	// nil, which disables that capability.
	STT        stt.Provider
	Suggester  session.Suggester
	Summariser coach.Summariser

	Readiness *health.Readiness
	Metrics   *observe.Metrics
}

// SessionManager builds coaching sessions from the current configuration.
// A reload swaps the compiled template atomically; sessions already running
// keep the template they started with. All methods are safe for concurrent
// use.
type SessionManager struct {
	template atomic.Pointer[session.Config]
	created  atomic.Int64

	stt        stt.Provider
	suggester  session.Suggester
	summariser coach.Summariser
	readiness  *health.Readiness
	metrics    *observe.Metrics
}

// NewSessionManager compiles cfg and returns a manager ready to hand out
// sessions.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("app: session manager requires a config")
	}
	sm := &SessionManager{
		stt:        cfg.STT,
		suggester:  cfg.Suggester,
		summariser: cfg.Summariser,
		readiness:  cfg.Readiness,
		metrics:    cfg.Metrics,
	}
	if err := sm.Apply(cfg.Config); err != nil {
		return nil, err
	}
	return sm, nil
}

// Apply recompiles the persona catalog, classifier and tunables from cfg.
// On error the previous template stays in effect.
func (sm *SessionManager) Apply(cfg *config.Config) error {
	tmpl, err := sessionConfig(cfg)
	if err != nil {
		return err
	}
	tmpl.STT = sm.stt
	tmpl.Suggester = sm.suggester
	tmpl.Summariser = sm.summariser
	sm.template.Store(&tmpl)
	return nil
}

// Personas returns the catalog new sessions are built with.
func (sm *SessionManager) Personas() *persona.Catalog {
	return sm.template.Load().Personas
}

// Created returns how many sessions have been handed out.
func (sm *SessionManager) Created() int64 { return sm.created.Load() }

// NewSession builds a controller from the current template. It satisfies
// [gateway.Factory].
func (sm *SessionManager) NewSession() (*session.Controller, error) {
	var opts []session.Option
	if sm.readiness != nil {
		opts = append(opts, session.WithReadiness(sm.readiness))
	}
	if sm.metrics != nil {
		opts = append(opts, session.WithMetrics(sm.metrics))
	}
	c, err := session.New(*sm.template.Load(), opts...)
	if err != nil {
		return nil, fmt.Errorf("app: new session: %w", err)
	}
	sm.created.Add(1)
	slog.Debug("session created", "session_id", c.ID())
	return c, nil
}

// sessionConfig compiles the hot-reloadable parts of cfg into a session
// template without providers.
func sessionConfig(cfg *config.Config) (session.Config, error) {
	cat, err := persona.NewCatalog(cfg.Personas, cfg.DefaultPersona)
	if err != nil {
		return session.Config{}, fmt.Errorf("app: personas: %w", err)
	}
	table := intent.DefaultTable()
	if cfg.Intents != nil {
		table = *cfg.Intents
	}
	classifier, err := intent.New(table)
	if err != nil {
		return session.Config{}, fmt.Errorf("app: intents: %w", err)
	}

	s := cfg.Session
	return session.Config{
		Personas:     cat,
		Classifier:   classifier,
		Shortcuts:    intent.NewShortcuts(cfg.Shortcuts),
		QuickActions: cfg.QuickActions,
		Energy: energy.Config{
			BaseRate:       s.Energy.BaseRate,
			ExhaustedBelow: s.Energy.ExhaustedBelow,
			FatigueBelow:   s.Energy.FatigueBelow,
			Multipliers:    maps.Clone(s.Energy.Multipliers),
			Sensitivity:    s.Energy.Sensitivity,
		},
		Speaker: audio.AttributorConfig{
			MeInitial:           s.Speaker.MeInitial,
			ThemInitial:         s.Speaker.ThemInitial,
			Smoothing:           s.Speaker.Smoothing,
			FreeToggles:         s.Speaker.FreeToggles,
			OverrideProbability: s.Speaker.OverrideProbability,
		},
		SampleRate:    s.SampleRate,
		Language:      s.Language,
		FlushSamples:  s.Audio.FlushSamples,
		FlushIdle:     s.Audio.FlushIdle,
		CacheTTL:      s.Cache.TTL,
		CacheCapacity: s.Cache.Capacity,
		HistoryDepth:  s.History.Depth,
		HistoryWindow: s.History.Window,
		HistoryRecent: s.History.Recent,
		MessageWindow: s.MessageWindow,
		SoftTimeout:   s.Timing.SoftTimeout,
		IdlePoll:      s.Timing.IdlePoll,
		SilenceAfter:  s.Timing.SilenceAfter,
	}, nil
}
