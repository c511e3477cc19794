// Package energy simulates a depleting "social battery".
//
// A [Model] starts full and loses a little charge for every utterance, scaled
// by the utterance's intent, the active persona and the user's chosen
// sensitivity. The value is always kept within [0, 100].
package energy

import (
	"fmt"
	"math"
)

const (
	// Max is the full-battery value and the starting point of every model.
	Max = 100.0

	DefaultBaseRate = 0.1

	// DefaultExhaustedBelow is the value under which the user is exhausted.
	DefaultExhaustedBelow = 15.0

	// DefaultFatigueBelow is the value under which suggestions start to fade.
	DefaultFatigueBelow = 40.0
)

// Sensitivity scales every deduction.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityNormal Sensitivity = "normal"
	SensitivityHigh   Sensitivity = "high"
)

// Factor returns the multiplier for s. Unknown values behave like normal.
func (s Sensitivity) Factor() float64 {
	switch s {
	case SensitivityLow:
		return 0.5
	case SensitivityHigh:
		return 1.5
	default:
		return 1.0
	}
}

// IsValid reports whether s is one of the named levels.
func (s Sensitivity) IsValid() bool {
	switch s {
	case SensitivityLow, SensitivityNormal, SensitivityHigh:
		return true
	}
	return false
}

// ParseSensitivity converts a level name into a [Sensitivity].
func ParseSensitivity(name string) (Sensitivity, error) {
	s := Sensitivity(name)
	if !s.IsValid() {
		return "", fmt.Errorf("energy: unknown sensitivity %q", name)
	}
	return s, nil
}

// DefaultMultipliers returns the per-intent drain multipliers.
func DefaultMultipliers() map[string]float64 {
	return map[string]float64{
		"social":       0.8,
		"professional": 1.2,
		"conflict":     2.0,
		"empathy":      1.1,
		"positive":     0.5,
		"general":      1.0,
	}
}

// Config tunes a [Model]. Zero fields take the package defaults.
type Config struct {
	BaseRate       float64
	ExhaustedBelow float64
	FatigueBelow   float64

	// Multipliers maps intent labels to drain multipliers. Intents missing
	// from the map use 1.0.
	Multipliers map[string]float64

	Sensitivity Sensitivity
}

// Model is the battery state. It is not safe for concurrent use.
type Model struct {
	cfg Config

	value       float64
	sensitivity Sensitivity
	paused      bool
	lastDrain   float64
}

// New returns a full Model.
func New(cfg Config) *Model {
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = DefaultBaseRate
	}
	if cfg.ExhaustedBelow <= 0 {
		cfg.ExhaustedBelow = DefaultExhaustedBelow
	}
	if cfg.FatigueBelow <= 0 {
		cfg.FatigueBelow = DefaultFatigueBelow
	}
	if cfg.Multipliers == nil {
		cfg.Multipliers = DefaultMultipliers()
	}
	if !cfg.Sensitivity.IsValid() {
		cfg.Sensitivity = SensitivityNormal
	}
	return &Model{cfg: cfg, value: Max, sensitivity: cfg.Sensitivity}
}

// Drain computes the deduction an utterance of the given intent would cause
// without applying it.
func (m *Model) Drain(intent string, personaRate float64) float64 {
	mult, ok := m.cfg.Multipliers[intent]
	if !ok {
		mult = 1.0
	}
	d := m.cfg.BaseRate * mult * personaRate * m.sensitivity.Factor()
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// Deduct subtracts the drain for one utterance and returns the new value.
// Deductions apply even while paused.
func (m *Model) Deduct(intent string, personaRate float64) float64 {
	d := m.Drain(intent, personaRate)
	m.value = clamp(m.value - d)
	m.lastDrain = d
	return m.value
}

// DeductSilence is like [Model.Deduct] but is a no-op while paused.
func (m *Model) DeductSilence(intent string, personaRate float64) float64 {
	if m.paused {
		return m.value
	}
	return m.Deduct(intent, personaRate)
}

// Recharge adds amount, clamped to [Max]. Negative or non-finite amounts are
// ignored.
func (m *Model) Recharge(amount float64) float64 {
	if amount > 0 && !math.IsInf(amount, 0) {
		m.value = clamp(m.value + amount)
	} else if math.IsInf(amount, 1) {
		m.value = Max
	}
	return m.value
}

// Reset restores a full battery and clears the last drain. Sensitivity and
// pause state are kept.
func (m *Model) Reset() {
	m.value = Max
	m.lastDrain = 0
}

// Value returns the current charge.
func (m *Model) Value() float64 { return m.value }

// LastDrain returns the amount removed by the most recent deduction.
func (m *Model) LastDrain() float64 { return m.lastDrain }

func (m *Model) Paused() bool { return m.paused }

func (m *Model) Sensitivity() Sensitivity { return m.sensitivity }

// SetSensitivity changes the deduction scale. Invalid levels are ignored.
func (m *Model) SetSensitivity(s Sensitivity) {
	if s.IsValid() {
		m.sensitivity = s
	}
}

// Pause suppresses silence deductions until [Model.Resume].
func (m *Model) Pause() { m.paused = true }

func (m *Model) Resume() { m.paused = false }

// TogglePause flips the pause state and returns the new state.
func (m *Model) TogglePause() bool {
	m.paused = !m.paused
	return m.paused
}

// IsExhausted reports whether the battery is below the exhausted threshold.
func (m *Model) IsExhausted() bool { return m.value < m.cfg.ExhaustedBelow }

// IsFatigued reports whether the battery is below the fatigue threshold.
func (m *Model) IsFatigued() bool { return m.value < m.cfg.FatigueBelow }

// Band names the energy band used in suggestion cache keys.
func (m *Model) Band() string {
	if m.IsExhausted() {
		return "exhausted"
	}
	return "normal"
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > Max:
		return Max
	}
	return v
}
