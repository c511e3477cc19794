// Package config provides the configuration schema, loader, and provider registry
// for the ConvoCue coaching server.
package config

import (
	"log/slog"
	"time"

	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/persona"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto a [slog.Level]. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`

	// Personas replaces the built-in persona set when non-empty.
	Personas []persona.Persona `yaml:"personas"`

	// DefaultPersona is the id new sessions start with.
	DefaultPersona string `yaml:"default_persona"`

	// Intents replaces the built-in classifier table when set.
	Intents *intent.Table `yaml:"intents"`

	// QuickActions replaces the built-in quick-action table when non-empty.
	QuickActions coach.QuickActions `yaml:"quick_actions"`

	// Shortcuts replaces the built-in opener table when non-empty.
	Shortcuts []intent.Shortcut `yaml:"shortcuts"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists host patterns accepted for WebSocket upgrades from
	// other origins. Same-origin requests are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// service. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`

	// LLMFallbacks and STTFallbacks are tried in order when the primary's
	// circuit breaker is open or it returns an error.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// BreakerConfig tunes the circuit breaker placed in front of every provider.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// SessionConfig tunes the per-connection coaching pipeline.
type SessionConfig struct {
	// SampleRate is the rate clients stream audio at. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Language is a BCP-47 hint passed to the recognition service.
	Language string `yaml:"language"`

	Audio   AudioConfig   `yaml:"audio"`
	Speaker SpeakerConfig `yaml:"speaker"`
	Cache   CacheConfig   `yaml:"cache"`
	History HistoryConfig `yaml:"history"`
	Energy  EnergyConfig  `yaml:"energy"`
	Timing  TimingConfig  `yaml:"timing"`

	// MessageWindow is how many transcript lines are sent with a suggestion
	// request. Default: 6.
	MessageWindow int `yaml:"message_window"`
}

// AudioConfig controls when buffered audio is sent for recognition.
type AudioConfig struct {
	// FlushSamples triggers a flush once exceeded. Default: one second of
	// audio at the session sample rate.
	FlushSamples int `yaml:"flush_samples"`

	// FlushIdle flushes after this long without a new chunk. Default: 300ms.
	FlushIdle time.Duration `yaml:"flush_idle"`
}

// SpeakerConfig tunes the loudness-based speaker heuristic.
type SpeakerConfig struct {
	MeInitial           float64 `yaml:"me_initial"`
	ThemInitial         float64 `yaml:"them_initial"`
	Smoothing           float64 `yaml:"smoothing"`

	// FreeToggles and OverrideProbability accept an explicit zero; only an
	// absent key takes the default (3 and 0.3).
	FreeToggles         *int     `yaml:"free_toggles"`
	OverrideProbability *float64 `yaml:"override_probability"`
}

// CacheConfig sizes the suggestion cache.
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// HistoryConfig sizes the trailing intent history used in cache keys.
type HistoryConfig struct {
	Depth  int           `yaml:"depth"`
	Window time.Duration `yaml:"window"`
	Recent int           `yaml:"recent"`
}

// EnergyConfig tunes the social energy model.
type EnergyConfig struct {
	BaseRate       float64            `yaml:"base_rate"`
	ExhaustedBelow float64            `yaml:"exhausted_below"`
	FatigueBelow   float64            `yaml:"fatigue_below"`
	Sensitivity    energy.Sensitivity `yaml:"sensitivity"`
	Multipliers    map[string]float64 `yaml:"multipliers"`
}

// TimingConfig holds the session's timers.
type TimingConfig struct {
	// SoftTimeout is when a pending suggestion shows a "still thinking"
	// placeholder. Default: 3s.
	SoftTimeout time.Duration `yaml:"soft_timeout"`

	// IdlePoll is the silence check period. Default: 2s.
	IdlePoll time.Duration `yaml:"idle_poll"`

	// SilenceAfter is the quiet period before a silence breaker. Default: 8s.
	SilenceAfter time.Duration `yaml:"silence_after"`
}
