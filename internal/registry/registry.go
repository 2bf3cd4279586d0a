package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/store"
)

// seedAgentID is the agent created on first start when the store is empty,
// so the exactly-one-default invariant holds from the first snapshot on.
const seedAgentID = "main"

// SwapListener is notified after a new snapshot has been committed.
type SwapListener func(*Snapshot)

// Registry owns the live configuration snapshot. Reads are lock-free via an
// atomic pointer; mutations serialize on a mutex, persist through the
// ConfigStore first, and swap the pointer only after a successful save.
type Registry struct {
	cfgStore store.ConfigStore
	log      *logging.Logger

	snap atomic.Pointer[Snapshot]

	mu        sync.Mutex // serializes mutations
	listeners []SwapListener
}

// New creates a registry on top of the given store. Call Load before use.
func New(cfgStore store.ConfigStore, log *logging.Logger) *Registry {
	return &Registry{
		cfgStore: cfgStore,
		log:      log.Sub("registry"),
	}
}

// Load reads the persisted state and installs the initial snapshot. An
// empty store is seeded with a single default agent, matching what a fresh
// install expects.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.cfgStore.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if len(state.Agents) == 0 {
		state.Agents = []domain.Agent{{ID: seedAgentID, Name: "Default Agent", IsDefault: true}}
		if err := r.cfgStore.Save(state); err != nil {
			return fmt.Errorf("seeding default agent: %w", err)
		}
		r.log.Info().Str("agent", seedAgentID).Msg("seeded default agent")
	}

	snap, err := NewSnapshot(state)
	if err != nil {
		return fmt.Errorf("invalid persisted configuration: %w", err)
	}

	r.snap.Store(snap)
	r.log.Info().
		Int("agents", snap.Len()).
		Int("bindings", len(snap.bindings)).
		Msg("configuration loaded")
	return nil
}

// Reload re-reads the store and swaps in the result. Used by the config
// watcher when the backing file changes externally. A store or validation
// error leaves the live snapshot untouched.
func (r *Registry) Reload() error {
	r.mu.Lock()

	state, err := r.cfgStore.Load()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("reloading configuration: %w", err)
	}
	snap, err := NewSnapshot(state)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("rejecting reloaded configuration: %w", err)
	}

	r.snap.Store(snap)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.log.Info().Int("agents", snap.Len()).Msg("configuration reloaded")
	notify(listeners, snap)
	return nil
}

// Snapshot returns the current configuration snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// OnSwap registers a listener invoked after every committed snapshot swap.
// Listeners run outside the mutation lock.
func (r *Registry) OnSwap(fn SwapListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// CreateAgent adds a new agent and commits the resulting snapshot.
func (r *Registry) CreateAgent(a domain.Agent) error {
	return r.mutate(func(state *store.State) error {
		if a.ID == "" {
			return ErrEmptyAgentID
		}
		for _, existing := range state.Agents {
			if existing.ID == a.ID {
				return fmt.Errorf("%w: %s", ErrAgentExists, a.ID)
			}
		}
		state.Agents = append(state.Agents, a.Clone())
		return nil
	})
}

// UpdateAgent replaces an existing agent definition by id.
func (r *Registry) UpdateAgent(a domain.Agent) error {
	return r.mutate(func(state *store.State) error {
		for i, existing := range state.Agents {
			if existing.ID == a.ID {
				state.Agents[i] = a.Clone()
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrAgentNotFound, a.ID)
	})
}

// DeleteAgent removes an agent and every binding targeting it. Deleting the
// default agent is rejected; pick a new default first.
func (r *Registry) DeleteAgent(id string) error {
	return r.mutate(func(state *store.State) error {
		idx := -1
		for i, a := range state.Agents {
			if a.ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		if state.Agents[idx].IsDefault {
			return fmt.Errorf("%w: cannot delete default agent %s", ErrMissingDefaultAgent, id)
		}

		state.Agents = append(state.Agents[:idx], state.Agents[idx+1:]...)

		kept := state.Bindings[:0]
		for _, b := range state.Bindings {
			if b.AgentID != id {
				kept = append(kept, b)
			}
		}
		state.Bindings = kept

		// Drop the deleted agent from every allow-list so no dangling
		// reference survives the delete.
		for i, a := range state.Agents {
			if a.AllowedSubagents == nil {
				continue
			}
			filtered := (*a.AllowedSubagents)[:0]
			for _, sub := range *a.AllowedSubagents {
				if sub != id {
					filtered = append(filtered, sub)
				}
			}
			*state.Agents[i].AllowedSubagents = filtered
		}
		return nil
	})
}

// SetDefaultAgent moves the default flag to the given agent.
func (r *Registry) SetDefaultAgent(id string) error {
	return r.mutate(func(state *store.State) error {
		found := false
		for i := range state.Agents {
			isTarget := state.Agents[i].ID == id
			state.Agents[i].IsDefault = isTarget
			found = found || isTarget
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		return nil
	})
}

// CreateBinding appends a binding to the table.
func (r *Registry) CreateBinding(b domain.Binding) error {
	return r.mutate(func(state *store.State) error {
		state.Bindings = append(state.Bindings, b)
		return nil
	})
}

// DeleteBinding removes the binding at the given position.
func (r *Registry) DeleteBinding(index int) error {
	return r.mutate(func(state *store.State) error {
		if index < 0 || index >= len(state.Bindings) {
			return fmt.Errorf("%w: index %d", ErrBindingNotFound, index)
		}
		state.Bindings = append(state.Bindings[:index], state.Bindings[index+1:]...)
		return nil
	})
}

// UpdateSubagentDefaults replaces the fleet-wide spawn limits.
func (r *Registry) UpdateSubagentDefaults(d domain.SubagentDefaults) error {
	return r.mutate(func(state *store.State) error {
		state.Defaults = d.Clone()
		return nil
	})
}

// mutate applies fn to a copy of the current state, validates the result,
// persists it, and swaps the snapshot. Any failure leaves both the store
// and the live snapshot unchanged.
func (r *Registry) mutate(fn func(*store.State) error) error {
	r.mu.Lock()

	cur := r.snap.Load()
	if cur == nil {
		r.mu.Unlock()
		return fmt.Errorf("registry not loaded")
	}

	state := cur.State()
	if err := fn(&state); err != nil {
		r.mu.Unlock()
		return err
	}

	snap, err := NewSnapshot(state)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	if err := r.cfgStore.Save(state); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("persisting configuration: %w", err)
	}

	r.snap.Store(snap)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.log.Debug().
		Int("agents", snap.Len()).
		Int("bindings", len(snap.bindings)).
		Msg("configuration committed")
	notify(listeners, snap)
	return nil
}

func (r *Registry) listenersLocked() []SwapListener {
	out := make([]SwapListener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

func notify(listeners []SwapListener, snap *Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
