// Package store provides persistence for agent routing configuration.
package store

import "github.com/soyeahso/switchboard/internal/domain"

// State is one full configuration snapshot as persisted: agents, bindings
// in declared order, and fleet-wide spawn defaults.
type State struct {
	Agents   []domain.Agent          `json:"agents"`
	Bindings []domain.Binding        `json:"bindings"`
	Defaults domain.SubagentDefaults `json:"subagentDefaults"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Agents:   make([]domain.Agent, len(s.Agents)),
		Bindings: make([]domain.Binding, len(s.Bindings)),
		Defaults: s.Defaults.Clone(),
	}
	for i, a := range s.Agents {
		out.Agents[i] = a.Clone()
	}
	copy(out.Bindings, s.Bindings)
	return out
}

// ConfigStore is the persistence collaborator for the registry.
//
// Save must be all-or-nothing: a partially written snapshot must never
// become visible to a subsequent Load.
type ConfigStore interface {
	Load() (State, error)
	Save(State) error
}
