package config_test

import (
	"strings"
	"testing"

	"github.com/tomwolfe/ConvoCue/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad log level",
			yaml:    "server:\n  log_level: bananas\n",
			wantErr: "log_level",
		},
		{
			name:    "tls needs both files",
			yaml:    "server:\n  tls:\n    cert_file: a.pem\n",
			wantErr: "tls",
		},
		{
			name:    "fallback without name",
			yaml:    "providers:\n  llm_fallbacks:\n    - model: x\n",
			wantErr: "llm_fallbacks[0].name",
		},
		{
			name:    "override probability out of range",
			yaml:    "session:\n  speaker:\n    override_probability: 1.5\n",
			wantErr: "override_probability",
		},
		{
			name:    "negative free toggles",
			yaml:    "session:\n  speaker:\n    free_toggles: -1\n",
			wantErr: "free_toggles",
		},
		{
			name:    "unknown sensitivity",
			yaml:    "session:\n  energy:\n    sensitivity: extreme\n",
			wantErr: "sensitivity",
		},
		{
			name:    "thresholds inverted",
			yaml:    "session:\n  energy:\n    exhausted_below: 50\n    fatigue_below: 30\n",
			wantErr: "must not exceed",
		},
		{
			name:    "unknown multiplier intent",
			yaml:    "session:\n  energy:\n    multipliers:\n      boredom: 2\n",
			wantErr: "boredom",
		},
		{
			name:    "duplicate persona",
			yaml:    "personas:\n  - {id: a, drain_rate: 1, prompt: x}\n  - {id: a, drain_rate: 1, prompt: y}\n",
			wantErr: "duplicate",
		},
		{
			name:    "persona without prompt",
			yaml:    "personas:\n  - {id: a, drain_rate: 1}\n",
			wantErr: "prompt",
		},
		{
			name:    "unknown default persona",
			yaml:    "default_persona: pirate\n",
			wantErr: "pirate",
		},
		{
			name:    "bad intent pattern",
			yaml:    "intents:\n  threshold: 0.1\n  nuances:\n    - {name: broken, pattern: \"(\"}\n",
			wantErr: "intents",
		},
		{
			name:    "shortcut without suggestion",
			yaml:    "shortcuts:\n  - {phrase: hi, intent: social}\n",
			wantErr: "shortcuts[0]",
		},
		{
			name:    "unknown quick action key",
			yaml:    "quick_actions:\n  sleepy:\n    - {label: a, text: b}\n",
			wantErr: "sleepy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	doc := `
server:
  log_level: loud
session:
  energy:
    sensitivity: extreme
`
	_, err := config.LoadFromReader(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"log_level", "sensitivity"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderNameIsOnlyAWarning(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("providers:\n  llm:\n    name: my-custom-llm\n"))
	if err != nil {
		t.Errorf("unknown provider names should not fail validation, got %v", err)
	}
}
