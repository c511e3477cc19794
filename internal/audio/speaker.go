package audio

import (
	"fmt"
	"math"
)

// Speaker identifies who produced an utterance.
type Speaker string

const (
	Me   Speaker = "me"
	Them Speaker = "them"
)

// Other returns the opposite speaker.
func (s Speaker) Other() Speaker {
	if s == Me {
		return Them
	}
	return Me
}

// Label is the prefix used when quoting the speaker in prompts.
func (s Speaker) Label() string {
	if s == Me {
		return "Me"
	}
	return "Them"
}

// Rand is the randomness the attributor needs. *math/rand/v2.Rand satisfies
// it.
type Rand interface {
	Float64() float64
}

// AttributorConfig tunes an [Attributor]. Zero or nil fields take the
// defaults. FreeToggles and OverrideProbability are pointers because zero is
// a meaningful value for both.
type AttributorConfig struct {
	// MeInitial and ThemInitial seed the loudness averages. Defaults: 0.15
	// and 0.05.
	MeInitial   float64
	ThemInitial float64

	// Smoothing is the weight given to the newest sample. Default: 0.1.
	Smoothing float64

	// FreeToggles is how many manual toggles may happen before automatic
	// switches become probabilistic. Default: 3.
	FreeToggles *int

	// OverrideProbability is the chance an automatic switch is accepted once
	// FreeToggles has been reached. Zero disables automatic switching from
	// then on. Default: 0.3.
	OverrideProbability *float64
}

func (c *AttributorConfig) applyDefaults() {
	if c.MeInitial <= 0 {
		c.MeInitial = 0.15
	}
	if c.ThemInitial <= 0 {
		c.ThemInitial = 0.05
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = 0.1
	}
	if c.FreeToggles == nil || *c.FreeToggles < 0 {
		c.FreeToggles = new(int)
		*c.FreeToggles = 3
	}
	if p := c.OverrideProbability; p == nil || *p < 0 || *p > 1 {
		c.OverrideProbability = new(float64)
		*c.OverrideProbability = 0.3
	}
}

// Attributor guesses the active speaker from chunk loudness.
//
// It keeps one exponential moving average of RMS per speaker. A chunk is
// attributed to whichever average it is closer to; only chunks that agree
// with the current assignment update that speaker's average, so a stray loud
// chunk cannot drag the profile. Users who keep correcting the heuristic by
// hand make it progressively more reluctant to switch on its own.
//
// Attributor is not safe for concurrent use.
type Attributor struct {
	cfg  AttributorConfig
	rand Rand

	freeToggles int
	override    float64

	meAvg, themAvg float64
	current        Speaker
	manualToggles  int
}

// NewAttributor returns an Attributor starting on [Them].
func NewAttributor(cfg AttributorConfig, r Rand) *Attributor {
	cfg.applyDefaults()
	a := &Attributor{cfg: cfg, rand: r, freeToggles: *cfg.FreeToggles, override: *cfg.OverrideProbability}
	a.Reset()
	return a
}

// Observe feeds one chunk's RMS and returns the speaker now assigned.
func (a *Attributor) Observe(rms float64) Speaker {
	guess := Them
	if math.Abs(rms-a.meAvg) < math.Abs(rms-a.themAvg) {
		guess = Me
	}

	if guess != a.current {
		if a.manualToggles < a.freeToggles || a.rand.Float64() < a.override {
			a.current = guess
		}
		return a.current
	}

	w := a.cfg.Smoothing
	if a.current == Me {
		a.meAvg = a.meAvg*(1-w) + rms*w
	} else {
		a.themAvg = a.themAvg*(1-w) + rms*w
	}
	return a.current
}

// Toggle flips the speaker on user request and returns the new speaker.
func (a *Attributor) Toggle() Speaker {
	a.current = a.current.Other()
	a.manualToggles++
	return a.current
}

// Current returns the assigned speaker.
func (a *Attributor) Current() Speaker { return a.current }

// ManualToggles returns how many times [Attributor.Toggle] was called.
func (a *Attributor) ManualToggles() int { return a.manualToggles }

// Averages returns the current loudness averages.
func (a *Attributor) Averages() (me, them float64) { return a.meAvg, a.themAvg }

// Reset restores the state of a freshly constructed Attributor.
func (a *Attributor) Reset() {
	a.meAvg = a.cfg.MeInitial
	a.themAvg = a.cfg.ThemInitial
	a.current = Them
	a.manualToggles = 0
}

func (a *Attributor) String() string {
	return fmt.Sprintf("speaker=%s me=%.3f them=%.3f toggles=%d", a.current, a.meAvg, a.themAvg, a.manualToggles)
}
