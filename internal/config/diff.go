package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// server changes are reported so the caller can warn that a restart is
// needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PersonasChanged bool          // true if any persona was added, removed or edited
	PersonaChanges  []PersonaDiff // per-persona diffs
	DefaultChanged  bool

	// IntentsChanged covers the classifier table and shortcuts.
	IntentsChanged      bool
	QuickActionsChanged bool
	SessionChanged      bool

	// RestartRequired is set when providers or the listen address changed.
	RestartRequired bool
}

// PersonaDiff describes what changed for a single persona between two configs.
type PersonaDiff struct {
	ID               string
	LabelChanged     bool
	DrainRateChanged bool
	PromptChanged    bool
	BreakersChanged  bool
	Added            bool
	Removed          bool
}

// Changed reports whether any hot-reloadable field changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PersonasChanged || d.DefaultChanged ||
		d.IntentsChanged || d.QuickActionsChanged || d.SessionChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.DefaultChanged = old.DefaultPersona != new.DefaultPersona
	d.IntentsChanged = !reflect.DeepEqual(old.Intents, new.Intents) ||
		!slices.Equal(old.Shortcuts, new.Shortcuts)
	d.QuickActionsChanged = !reflect.DeepEqual(old.QuickActions, new.QuickActions)
	d.SessionChanged = !reflect.DeepEqual(old.Session, new.Session)
	d.RestartRequired = old.Server.ListenAddr != new.Server.ListenAddr ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) ||
		!reflect.DeepEqual(old.Providers, new.Providers)

	// Build persona lookup maps keyed by id.
	oldPersonas := make(map[string]int, len(old.Personas))
	for i := range old.Personas {
		oldPersonas[old.Personas[i].ID] = i
	}
	newPersonas := make(map[string]int, len(new.Personas))
	for i := range new.Personas {
		newPersonas[new.Personas[i].ID] = i
	}

	// Detect modified and removed personas.
	for id, oi := range oldPersonas {
		ni, exists := newPersonas[id]
		if !exists {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Removed: true})
			d.PersonasChanged = true
			continue
		}
		o, n := old.Personas[oi], new.Personas[ni]
		pd := PersonaDiff{
			ID:               id,
			LabelChanged:     o.Label != n.Label,
			DrainRateChanged: o.DrainRate != n.DrainRate,
			PromptChanged:    o.Prompt != n.Prompt,
			BreakersChanged:  !slices.Equal(o.SilenceBreakers, n.SilenceBreakers),
		}
		if pd.LabelChanged || pd.DrainRateChanged || pd.PromptChanged || pd.BreakersChanged {
			d.PersonaChanges = append(d.PersonaChanges, pd)
			d.PersonasChanged = true
		}
	}

	// Detect added personas.
	for id := range newPersonas {
		if _, exists := oldPersonas[id]; !exists {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Added: true})
			d.PersonasChanged = true
		}
	}

	return d
}
