// Package persona holds the coaching personas a session can be run with.
//
// A [Persona] is immutable reference data: a label shown to the user and the
// model, a drain-rate multiplier for the social energy model, the prompt used
// as the suggestion instruction and a handful of silence breakers. Personas
// are loaded from configuration into a [Catalog]; built-in defaults are
// available from [Defaults].
package persona

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknown is returned when a persona id is not in the catalog.
var ErrUnknown = errors.New("persona: unknown persona")

// DefaultID is the persona selected when configuration names none.
const DefaultID = "anxiety"

// Persona is one coaching style.
type Persona struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`

	// DrainRate scales every energy deduction made while this persona is
	// active. Must be positive.
	DrainRate float64 `yaml:"drain_rate" json:"drain_rate"`

	// Prompt is the instruction sent with suggestion requests.
	Prompt string `yaml:"prompt" json:"-"`

	// SilenceBreakers are offered when the conversation stalls.
	SilenceBreakers []string `yaml:"silence_breakers" json:"-"`
}

// Validate reports the first problem with p.
func (p Persona) Validate() error {
	switch {
	case p.ID == "":
		return errors.New("id is required")
	case p.DrainRate <= 0:
		return fmt.Errorf("drain_rate %.2f must be positive", p.DrainRate)
	case p.Prompt == "":
		return errors.New("prompt is required")
	}
	return nil
}

// Catalog is an ordered, read-only set of personas. Safe for concurrent use.
type Catalog struct {
	order     []string
	byID      map[string]Persona
	defaultID string
}

// NewCatalog validates personas and builds a catalog. An empty defaultID
// selects [DefaultID] when present, otherwise the first persona.
func NewCatalog(personas []Persona, defaultID string) (*Catalog, error) {
	if len(personas) == 0 {
		return nil, errors.New("persona: catalog is empty")
	}
	c := &Catalog{byID: make(map[string]Persona, len(personas))}
	for i, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona: personas[%d]: %w", i, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate id %q", p.ID)
		}
		if p.Label == "" {
			p.Label = p.ID
		}
		p.SilenceBreakers = slices.Clone(p.SilenceBreakers)
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	switch {
	case defaultID != "":
		if _, ok := c.byID[defaultID]; !ok {
			return nil, fmt.Errorf("%w: default %q", ErrUnknown, defaultID)
		}
		c.defaultID = defaultID
	case c.byID[DefaultID].ID != "":
		c.defaultID = DefaultID
	default:
		c.defaultID = c.order[0]
	}
	return c, nil
}

// Get returns the persona with id.
func (c *Catalog) Get(id string) (Persona, error) {
	p, ok := c.byID[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknown, id)
	}
	return p, nil
}

// Default returns the persona new sessions start with.
func (c *Catalog) Default() Persona { return c.byID[c.defaultID] }

// IDs returns persona ids in configuration order.
func (c *Catalog) IDs() []string { return slices.Clone(c.order) }

// All returns every persona in configuration order.
func (c *Catalog) All() []Persona {
	out := make([]Persona, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
