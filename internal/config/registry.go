package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// Provider kinds accepted by [Registry.Names].
const (
	KindLLM = "llm"
	KindSTT = "stt"
)

var (
	// ErrProviderNotRegistered is returned when no factory exists for the
	// requested name.
	ErrProviderNotRegistered = errors.New("config: provider not registered")

	// ErrNilProvider is returned when a factory reports success without
	// producing a provider.
	ErrNilProvider = errors.New("config: factory returned no provider")
)

// Factory builds a provider from its config entry.
type Factory[P any] func(ProviderEntry) (P, error)

// factories is one kind's name to constructor table.
type factories[P comparable] struct {
	kind string
	m    map[string]Factory[P]
}

// create looks up entry.Name under mu and runs the factory outside it, so a
// slow model load never blocks registration.
func (f *factories[P]) create(mu *sync.RWMutex, entry ProviderEntry) (P, error) {
	var zero P
	mu.RLock()
	build, ok := f.m[entry.Name]
	mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	p, err := build(entry)
	if err != nil {
		return zero, err
	}
	if p == zero {
		return zero, fmt.Errorf("%w: %s/%q", ErrNilProvider, f.kind, entry.Name)
	}
	return p, nil
}

// Registry resolves the provider names used in [ProvidersConfig] to
// constructors. Tests register mocks; the binary registers the real
// backends. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm factories[llm.Provider]
	stt factories[stt.Provider]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: factories[llm.Provider]{kind: KindLLM, m: map[string]Factory[llm.Provider]{}},
		stt: factories[stt.Provider]{kind: KindSTT, m: map[string]Factory[stt.Provider]{}},
	}
}

// RegisterLLM registers f under name, replacing any earlier registration.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	r.llm.m[name] = f
	r.mu.Unlock()
}

// RegisterSTT registers f under name, replacing any earlier registration.
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	r.stt.m[name] = f
	r.mu.Unlock()
}

// CreateLLM builds the LLM provider named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return r.llm.create(&r.mu, entry)
}

// CreateSTT builds the STT provider named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return r.stt.create(&r.mu, entry)
}

// Names returns the sorted names registered for kind, or nil for an
// unknown kind.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case KindLLM:
		return slices.Sorted(maps.Keys(r.llm.m))
	case KindSTT:
		return slices.Sorted(maps.Keys(r.stt.m))
	}
	return nil
}
