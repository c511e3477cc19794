package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tomwolfe/ConvoCue/internal/coach"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/intent"
	"github.com/tomwolfe/ConvoCue/internal/persona"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "openai-sdk", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"whisper", "whisper-native", "deepgram", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references from
// the environment, fills defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes is [LoadFromReader] for an in-memory document.
func LoadBytes(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero-valued tunable with its built-in default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	s := &cfg.Session
	setInt(&s.SampleRate, 16000)
	setInt(&s.Audio.FlushSamples, s.SampleRate)
	setDuration(&s.Audio.FlushIdle, 300*time.Millisecond)
	setFloat(&s.Speaker.MeInitial, 0.15)
	setFloat(&s.Speaker.ThemInitial, 0.05)
	setFloat(&s.Speaker.Smoothing, 0.1)
	setPtr(&s.Speaker.FreeToggles, 3)
	setPtr(&s.Speaker.OverrideProbability, 0.3)
	setDuration(&s.Cache.TTL, 45*time.Second)
	setInt(&s.Cache.Capacity, 75)
	setInt(&s.History.Depth, 5)
	setDuration(&s.History.Window, 30*time.Second)
	setInt(&s.History.Recent, 3)
	setFloat(&s.Energy.BaseRate, energy.DefaultBaseRate)
	setFloat(&s.Energy.ExhaustedBelow, energy.DefaultExhaustedBelow)
	setFloat(&s.Energy.FatigueBelow, energy.DefaultFatigueBelow)
	if s.Energy.Sensitivity == "" {
		s.Energy.Sensitivity = energy.SensitivityNormal
	}
	if s.Energy.Multipliers == nil {
		s.Energy.Multipliers = energy.DefaultMultipliers()
	}
	setDuration(&s.Timing.SoftTimeout, 3*time.Second)
	setDuration(&s.Timing.IdlePoll, 2*time.Second)
	setDuration(&s.Timing.SilenceAfter, 8*time.Second)
	setInt(&s.MessageWindow, 6)

	if len(cfg.Personas) == 0 {
		cfg.Personas = persona.Defaults()
	}
	if cfg.Intents == nil {
		t := intent.DefaultTable()
		cfg.Intents = &t
	}
	if len(cfg.QuickActions) == 0 {
		cfg.QuickActions = coach.DefaultQuickActions()
	}
	if len(cfg.Shortcuts) == 0 {
		cfg.Shortcuts = intent.DefaultShortcuts()
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", fb.Name)
	}
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", fb.Name)
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; suggestions and summaries will be unavailable")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; only text input will be processed")
	}

	// Session
	s := cfg.Session
	if s.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("session.sample_rate %d must be positive", s.SampleRate))
	}
	if s.Audio.FlushSamples < 0 {
		errs = append(errs, fmt.Errorf("session.audio.flush_samples %d must be positive", s.Audio.FlushSamples))
	}
	if p := s.Speaker.OverrideProbability; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("session.speaker.override_probability %.2f is out of range [0, 1]", *p))
	}
	if n := s.Speaker.FreeToggles; n != nil && *n < 0 {
		errs = append(errs, fmt.Errorf("session.speaker.free_toggles %d must not be negative", *n))
	}
	if w := s.Speaker.Smoothing; w < 0 || w > 1 {
		errs = append(errs, fmt.Errorf("session.speaker.smoothing %.2f is out of range [0, 1]", w))
	}
	if s.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("session.cache.capacity %d must be positive", s.Cache.Capacity))
	}
	e := s.Energy
	if e.Sensitivity != "" && !e.Sensitivity.IsValid() {
		errs = append(errs, fmt.Errorf("session.energy.sensitivity %q is invalid; valid values: low, normal, high", e.Sensitivity))
	}
	for name, v := range map[string]float64{"exhausted_below": e.ExhaustedBelow, "fatigue_below": e.FatigueBelow} {
		if v < 0 || v > energy.Max {
			errs = append(errs, fmt.Errorf("session.energy.%s %.1f is out of range [0, 100]", name, v))
		}
	}
	if e.ExhaustedBelow > 0 && e.FatigueBelow > 0 && e.ExhaustedBelow > e.FatigueBelow {
		errs = append(errs, fmt.Errorf("session.energy.exhausted_below %.1f must not exceed fatigue_below %.1f", e.ExhaustedBelow, e.FatigueBelow))
	}
	for label, m := range e.Multipliers {
		if !intent.Label(label).IsValid() {
			errs = append(errs, fmt.Errorf("session.energy.multipliers has unknown intent %q", label))
		}
		if m < 0 {
			errs = append(errs, fmt.Errorf("session.energy.multipliers[%s] %.2f must not be negative", label, m))
		}
	}

	// Personas
	if len(cfg.Personas) > 0 {
		if _, err := persona.NewCatalog(cfg.Personas, cfg.DefaultPersona); err != nil {
			errs = append(errs, fmt.Errorf("personas: %w", err))
		}
	}

	// Intents
	if cfg.Intents != nil {
		if _, err := intent.New(*cfg.Intents); err != nil {
			errs = append(errs, fmt.Errorf("intents: %w", err))
		}
	}
	for i, sc := range cfg.Shortcuts {
		if sc.Phrase == "" || sc.Suggestion == "" {
			errs = append(errs, fmt.Errorf("shortcuts[%d] requires phrase and suggestion", i))
		}
	}
	for key := range cfg.QuickActions {
		if key != coach.ExhaustedKey && !intent.Label(key).IsValid() {
			errs = append(errs, fmt.Errorf("quick_actions has unknown key %q", key))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, possibly a typo or an externally registered provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with the value of the environment variable VAR.
// Bare $VAR is left alone so prompts may contain dollar signs.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

// setPtr fills an unset optional field. An explicit zero is kept.
func setPtr[T any](v **T, def T) {
	if *v == nil {
		*v = &def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}
