package main

import (
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/tomwolfe/ConvoCue/internal/config"
	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
	"github.com/tomwolfe/ConvoCue/pkg/provider/llm/anyllm"
	oallm "github.com/tomwolfe/ConvoCue/pkg/provider/llm/openai"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt/deepgram"
	oastt "github.com/tomwolfe/ConvoCue/pkg/provider/stt/openai"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires every provider implementation that ships
// with ConvoCue into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// LLM backends reached through any-llm share the same shape: optional
	// API key and optional base URL.
	for _, name := range anyllm.Backends() {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(name, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// openai-sdk talks to any OpenAI-compatible endpoint through the official
	// SDK, including its retry and timeout handling.
	reg.RegisterLLM("openai-sdk", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		if n, ok := optInt(entry.Options, "max_retries"); ok {
			opts = append(opts, oallm.WithMaxRetries(n))
		}
		p, err := oallm.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, oastt.WithLanguage(lang))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oastt.WithTimeout(d))
		}
		return oastt.New(entry.APIKey, opts...)
	})

	for _, kind := range []string{config.KindLLM, config.KindSTT} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from a provider Options map. YAML numbers
// decode as int, JSON numbers as float64; both are accepted.
func optInt(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// optDuration parses a duration string such as "30s" from a provider
// Options map. Invalid or missing values yield zero.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}
