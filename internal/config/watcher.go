package config

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultWatchInterval = 5 * time.Second

// fileState identifies one version of the watched file. Size and mtime
// decide whether the file needs reading; the digest decides whether its
// content really changed.
type fileState struct {
	mtime  time.Time
	size   int64
	digest [sha256.Size]byte
}

func (s fileState) sameStat(info os.FileInfo) bool {
	return s.mtime.Equal(info.ModTime()) && s.size == info.Size()
}

// Watcher polls a config file and hands every new valid version to a
// callback. Personas, intent tables and session tunables are hot-reloaded
// this way; the callback decides what else a change means.
//
// A version that fails to parse or validate is logged once and skipped; the
// last valid config stays current until the file is fixed.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	applied  fileState
	rejected *fileState
	reloads  int

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts polling it. onChange runs on the polling
// goroutine after every accepted change and may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultWatchInterval,
		onChange: onChange,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, state, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current = cfg
	w.applied = state

	go w.run()
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reloads returns how many changes have been accepted since start.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Stop ends polling and waits for an in-flight callback to return. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.stopped
}

func (w *Watcher) run() {
	defer close(w.stopped)
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.check()
		}
	}
}

// check reloads the file when its stat changed and its content differs from
// both the applied and the last rejected version.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := w.applied.sameStat(info) || (w.rejected != nil && w.rejected.sameStat(info))
	w.mu.Unlock()
	if unchanged {
		return
	}

	data, state, err := readState(w.path)
	if err != nil {
		slog.Warn("config watcher: read failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	switch {
	case state.digest == w.applied.digest:
		// Touched but identical.
		w.applied = state
		w.mu.Unlock()
		return
	case w.rejected != nil && state.digest == w.rejected.digest:
		w.rejected = &state
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	cfg, err := LoadBytes(data)
	if err != nil {
		w.mu.Lock()
		w.rejected = &state
		w.mu.Unlock()
		slog.Warn("config watcher: change rejected, keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.applied = state
	w.rejected = nil
	w.reloads++
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) read() (*Config, fileState, error) {
	data, state, err := readState(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadBytes(data)
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, state, nil
}

func readState(path string) ([]byte, fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileState{}, err
	}
	return data, fileState{
		mtime:  info.ModTime(),
		size:   info.Size(),
		digest: sha256.Sum256(data),
	}, nil
}
