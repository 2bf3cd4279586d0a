// Package registry manages immutable configuration snapshots of agents,
// bindings and spawn defaults.
package registry

import (
	"fmt"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/store"
)

// Snapshot is one immutable, validated configuration. Readers hold it
// without locking; a mutation produces a fresh Snapshot and the registry
// swaps the pointer, so an in-flight read observes either the fully-old or
// fully-new configuration, never a mix.
type Snapshot struct {
	agents    map[string]domain.Agent
	order     []string // agent ids in declared order
	bindings  []domain.Binding
	defaults  domain.SubagentDefaults
	defaultID string
}

// NewSnapshot validates a state and builds a snapshot from it. The checks
// mirror the mutation-time invariants: unique non-empty agent ids, exactly
// one default agent, and no binding or allow-list entry referencing a
// missing agent.
func NewSnapshot(state store.State) (*Snapshot, error) {
	snap := &Snapshot{
		agents:   make(map[string]domain.Agent, len(state.Agents)),
		order:    make([]string, 0, len(state.Agents)),
		bindings: make([]domain.Binding, len(state.Bindings)),
		defaults: state.Defaults.Clone(),
	}

	for _, a := range state.Agents {
		if a.ID == "" {
			return nil, ErrEmptyAgentID
		}
		if _, dup := snap.agents[a.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrAgentExists, a.ID)
		}
		if a.IsDefault {
			if snap.defaultID != "" {
				return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateDefaultAgent, snap.defaultID, a.ID)
			}
			snap.defaultID = a.ID
		}
		snap.agents[a.ID] = a.Clone()
		snap.order = append(snap.order, a.ID)
	}

	if snap.defaultID == "" {
		return nil, ErrMissingDefaultAgent
	}

	for i, b := range state.Bindings {
		if _, ok := snap.agents[b.AgentID]; !ok {
			return nil, fmt.Errorf("%w: binding %d -> %s", ErrDanglingAgentReference, i, b.AgentID)
		}
		snap.bindings[i] = b
	}

	for _, a := range state.Agents {
		if a.AllowedSubagents == nil {
			continue
		}
		for _, sub := range *a.AllowedSubagents {
			if _, ok := snap.agents[sub]; !ok {
				return nil, fmt.Errorf("%w: agent %s allows %s", ErrDanglingAgentReference, a.ID, sub)
			}
		}
	}

	return snap, nil
}

// Agent returns the agent with the given id.
func (s *Snapshot) Agent(id string) (domain.Agent, bool) {
	a, ok := s.agents[id]
	return a, ok
}

// Has reports whether an agent with the given id exists.
func (s *Snapshot) Has(id string) bool {
	_, ok := s.agents[id]
	return ok
}

// Agents returns all agents in declared order.
func (s *Snapshot) Agents() []domain.Agent {
	out := make([]domain.Agent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agents[id])
	}
	return out
}

// Bindings returns the binding table in declared order.
func (s *Snapshot) Bindings() []domain.Binding {
	out := make([]domain.Binding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

// Defaults returns the fleet-wide spawn limits.
func (s *Snapshot) Defaults() domain.SubagentDefaults {
	return s.defaults
}

// DefaultAgent returns the agent flagged as default.
func (s *Snapshot) DefaultAgent() domain.Agent {
	return s.agents[s.defaultID]
}

// DefaultAgentID returns the id of the default agent.
func (s *Snapshot) DefaultAgentID() string {
	return s.defaultID
}

// Len returns the number of agents.
func (s *Snapshot) Len() int {
	return len(s.agents)
}

// State reconstructs the persistable form of this snapshot. The result is
// a deep copy; mutating it does not touch the snapshot.
func (s *Snapshot) State() store.State {
	state := store.State{
		Agents:   s.Agents(),
		Bindings: s.Bindings(),
		Defaults: s.defaults.Clone(),
	}
	for i, a := range state.Agents {
		state.Agents[i] = a.Clone()
	}
	return state
}
