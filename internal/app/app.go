// Package app wires all ConvoCue subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the session template,
// the WebSocket gateway and the HTTP routes, Run loads the providers in the
// background while serving, and Shutdown tears everything down in order.
//
// Providers are created through a [config.Registry], so tests register mock
// factories instead of real backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/config"
	"github.com/tomwolfe/ConvoCue/internal/gateway"
	"github.com/tomwolfe/ConvoCue/internal/health"
	"github.com/tomwolfe/ConvoCue/internal/observe"
)

const (
	defaultShutdownTimeout = 15 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// App owns all subsystem lifetimes of the coaching server.
type App struct {
	cfg *config.Config
	reg *config.Registry

	level     *slog.LevelVar
	metrics   *observe.Metrics
	telemetry *observe.Telemetry
	readiness *health.Readiness
	health    *health.Handler

	llm *llmSlot
	stt *sttSlot

	sessions *SessionManager
	gateway  *gateway.Server

	configPath    string
	watchInterval time.Duration
	watcher       *config.Watcher
	listener      net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithLevelVar lets config reloads change the log level of a handler built
// on lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry serves t's Prometheus registry at /metrics and shuts t down
// with the app.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithConfigWatch hot-reloads the config file at path, polling every
// interval (zero uses the watcher default).
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// WithListener serves on l instead of listening on the configured address.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App. Providers are not created until [App.Run]; until then
// readiness reports both services as loading.
func New(cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	if cfg == nil || reg == nil {
		return nil, errors.New("app: config and registry are required")
	}
	a := &App{
		cfg:       cfg,
		reg:       reg,
		readiness: health.NewReadiness(health.ServiceSTT, health.ServiceLLM),
		llm:       &llmSlot{},
		stt:       &sttSlot{},
	}
	for _, o := range opts {
		o(a)
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.SlogLevel())
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.health = health.New(a.readiness)

	var err error
	a.sessions, err = NewSessionManager(SessionManagerConfig{
		Config: cfg,
		STT:    &meteredSTT{next: a.stt, provider: cfg.Providers.STT.Name, metrics: a.metrics},
		Suggester: coach.NewSuggester(&meteredLLM{
			next: a.llm, provider: cfg.Providers.LLM.Name, kind: "llm-suggest", metrics: a.metrics,
		}),
		Summariser: coach.NewLLMSummariser(&meteredLLM{
			next: a.llm, provider: cfg.Providers.LLM.Name, kind: "llm-summarize", metrics: a.metrics,
		}),
		Readiness: a.readiness,
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, err
	}

	a.gateway, err = gateway.New(gateway.Config{
		Factory:        a.sessions.NewSession,
		OriginPatterns: cfg.Server.AllowedOrigins,
		SampleRate:     cfg.Session.SampleRate,
		Metrics:        a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.readiness.OnChange(func(rep health.Report) {
		slog.Info("readiness changed", "level", rep.Level)
		a.gateway.Refresh()
	})

	if a.configPath != "" {
		var wopts []config.WatcherOption
		if a.watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(a.watchInterval))
		}
		a.watcher, err = config.NewWatcher(a.configPath, a.reload, wopts...)
		if err != nil {
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.closers = append(a.closers, func() error {
			a.watcher.Stop()
			return nil
		})
	}
	if a.telemetry != nil {
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.telemetry.Shutdown(ctx)
		})
	}
	return a, nil
}

// Readiness exposes the capability tracker.
func (a *App) Readiness() *health.Readiness { return a.readiness }

// Sessions exposes the session factory.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Gateway exposes the WebSocket server.
func (a *App) Gateway() *gateway.Server { return a.gateway }

// Handler returns the HTTP routes: /healthz, /readyz, /metrics and /ws.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.telemetry != nil {
		mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	}
	mux.Handle("GET /ws", a.gateway)
	return observe.Middleware(a.metrics)(mux)
}

// Run loads the providers and serves HTTP until ctx is cancelled or the
// server fails. Provider load failures do not stop the server; they surface
// through readiness.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.LoadProviders(gctx)
		return nil
	})
	g.Go(func() error {
		err := a.serve(srv)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := a.gateway.Close(sctx); err != nil {
			slog.Warn("gateway close", "err", err)
		}
		return srv.Shutdown(sctx)
	})

	slog.Info("server listening", "addr", a.cfg.Server.ListenAddr, "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

func (a *App) serve(srv *http.Server) error {
	tls := a.cfg.Server.TLS
	switch {
	case a.listener != nil && tls != nil:
		return srv.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
	case a.listener != nil:
		return srv.Serve(a.listener)
	case tls != nil:
		return srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	default:
		return srv.ListenAndServe()
	}
}

// LoadProviders creates the STT and LLM providers concurrently and installs
// them behind the session slots. Each outcome is reported to readiness.
func (a *App) LoadProviders(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		a.load(ctx, health.ServiceLLM, a.cfg.Providers.LLM.Name, func() error {
			p, err := buildLLM(a.reg, a.cfg.Providers, a.metrics)
			if err == nil {
				a.llm.set(p)
			}
			return err
		})
		return nil
	})
	g.Go(func() error {
		a.load(ctx, health.ServiceSTT, a.cfg.Providers.STT.Name, func() error {
			p, err := buildSTT(a.reg, a.cfg.Providers, a.metrics)
			if err == nil {
				a.stt.set(p)
			}
			return err
		})
		return nil
	})
	_ = g.Wait()
}

func (a *App) load(ctx context.Context, service, name string, build func() error) {
	if name == "" {
		a.readiness.MarkFailed(service, &health.ServiceLoadError{Service: service, Err: errNotConfigured})
		return
	}
	a.readiness.SetProgress(service, 0)

	ctx, span := observe.StartSpan(ctx, "app.load."+service)
	log := observe.Logger(ctx).With("service", service, "name", name)

	start := time.Now()
	err := build()
	observe.EndSpan(span, err)
	if err != nil {
		log.Error("provider load failed", "err", err)
		a.readiness.MarkFailed(service, &health.ServiceLoadError{Service: service, Err: err})
		return
	}
	log.Info("provider loaded", "elapsed", time.Since(start))
	a.readiness.MarkReady(service)
}

// reload applies a changed config file. Provider and listener changes are
// only logged; they take effect on restart.
func (a *App) reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("config reload: log level changed", "level", d.NewLogLevel)
	}
	if d.RestartRequired {
		slog.Warn("config reload: provider or server changes require a restart")
	}
	if !d.PersonasChanged && !d.DefaultChanged && !d.IntentsChanged &&
		!d.QuickActionsChanged && !d.SessionChanged {
		return
	}
	if err := a.sessions.Apply(new); err != nil {
		slog.Error("config reload rejected", "err", err)
		return
	}
	for _, pd := range d.PersonaChanges {
		slog.Info("config reload: persona changed", "id", pd.ID, "added", pd.Added, "removed", pd.Removed)
	}
	slog.Info("config reload applied",
		"personas", d.PersonasChanged,
		"intents", d.IntentsChanged,
		"quick_actions", d.QuickActionsChanged,
		"session", d.SessionChanged,
	)
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.gateway.Close(ctx); err != nil {
			slog.Warn("gateway close error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
