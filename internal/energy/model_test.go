package energy_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/tomwolfe/ConvoCue/internal/energy"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestModel_Deduct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		intent      string
		personaRate float64
		sensitivity energy.Sensitivity
		wantDrain   float64
	}{
		{name: "conflict anxiety normal", intent: "conflict", personaRate: 1.5, sensitivity: energy.SensitivityNormal, wantDrain: 0.1 * 2.0 * 1.5},
		{name: "positive low", intent: "positive", personaRate: 1.0, sensitivity: energy.SensitivityLow, wantDrain: 0.1 * 0.5 * 0.5},
		{name: "social high", intent: "social", personaRate: 0.8, sensitivity: energy.SensitivityHigh, wantDrain: 0.1 * 0.8 * 0.8 * 1.5},
		{name: "unknown intent", intent: "sarcasm", personaRate: 1.0, sensitivity: energy.SensitivityNormal, wantDrain: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := energy.New(energy.Config{Sensitivity: tt.sensitivity})
			got := m.Deduct(tt.intent, tt.personaRate)
			if !approx(m.LastDrain(), tt.wantDrain) {
				t.Errorf("LastDrain = %v, want %v", m.LastDrain(), tt.wantDrain)
			}
			if !approx(got, energy.Max-tt.wantDrain) {
				t.Errorf("Deduct = %v, want %v", got, energy.Max-tt.wantDrain)
			}
		})
	}
}

func TestModel_Thresholds(t *testing.T) {
	t.Parallel()

	m := energy.New(energy.Config{BaseRate: 1})
	if m.IsFatigued() || m.IsExhausted() || m.Band() != "normal" {
		t.Fatal("fresh model should be normal")
	}

	// 61 general deductions of 1.0 leave 39.
	for range 61 {
		m.Deduct("general", 1)
	}
	if !m.IsFatigued() {
		t.Errorf("value %v: expected fatigued", m.Value())
	}
	if m.IsExhausted() {
		t.Errorf("value %v: unexpected exhausted", m.Value())
	}

	// 25 more leave 14.
	for range 25 {
		m.Deduct("general", 1)
	}
	if !m.IsExhausted() || m.Band() != "exhausted" {
		t.Errorf("value %v: expected exhausted band", m.Value())
	}
}

func TestModel_PauseSuppressesSilenceOnly(t *testing.T) {
	t.Parallel()

	m := energy.New(energy.Config{})
	if !m.TogglePause() {
		t.Fatal("TogglePause should report paused")
	}

	if got := m.DeductSilence("general", 1); got != energy.Max {
		t.Errorf("DeductSilence while paused = %v, want %v", got, energy.Max)
	}
	if got := m.Deduct("general", 1); got >= energy.Max {
		t.Errorf("Deduct while paused = %v, want < %v", got, energy.Max)
	}

	m.Resume()
	before := m.Value()
	if got := m.DeductSilence("general", 1); got >= before {
		t.Errorf("DeductSilence after resume = %v, want < %v", got, before)
	}
}

func TestModel_RechargeAndReset(t *testing.T) {
	t.Parallel()

	m := energy.New(energy.Config{BaseRate: 10})
	m.Deduct("conflict", 1) // -20
	if got := m.Recharge(5); !approx(got, 85) {
		t.Errorf("Recharge(5) = %v, want 85", got)
	}
	if got := m.Recharge(500); got != energy.Max {
		t.Errorf("Recharge(500) = %v, want %v", got, energy.Max)
	}
	if got := m.Recharge(-50); got != energy.Max {
		t.Errorf("Recharge(-50) = %v, want unchanged", got)
	}

	m.Deduct("general", 1)
	m.SetSensitivity(energy.SensitivityHigh)
	m.Reset()
	if m.Value() != energy.Max || m.LastDrain() != 0 {
		t.Errorf("after Reset value=%v lastDrain=%v", m.Value(), m.LastDrain())
	}
	if m.Sensitivity() != energy.SensitivityHigh {
		t.Errorf("Reset changed sensitivity to %q", m.Sensitivity())
	}
}

func TestModel_AlwaysWithinBounds(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	intents := []string{"social", "professional", "conflict", "empathy", "positive", "general"}
	odd := []float64{-5, 0, math.NaN(), math.Inf(1), math.Inf(-1), 1e9}

	m := energy.New(energy.Config{BaseRate: 3})
	for i := range 5000 {
		switch r.IntN(4) {
		case 0:
			m.Deduct(intents[r.IntN(len(intents))], r.Float64()*3)
		case 1:
			m.Recharge(r.Float64()*20 - 5)
		case 2:
			m.DeductSilence("general", odd[r.IntN(len(odd))])
		case 3:
			m.Recharge(odd[r.IntN(len(odd))])
		}
		if v := m.Value(); v < 0 || v > energy.Max || math.IsNaN(v) {
			t.Fatalf("step %d: value %v out of bounds", i, v)
		}
	}
}

func TestParseSensitivity(t *testing.T) {
	t.Parallel()

	if s, err := energy.ParseSensitivity("high"); err != nil || s != energy.SensitivityHigh {
		t.Errorf("ParseSensitivity(high) = %q, %v", s, err)
	}
	if _, err := energy.ParseSensitivity("extreme"); err == nil {
		t.Error("ParseSensitivity(extreme): expected error")
	}
}
