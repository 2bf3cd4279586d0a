// Package routing resolves inbound conversational events to agent ids.
package routing

import (
	"errors"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/registry"
)

// ErrNoDefaultAgent is returned when no binding matches and no agent is
// flagged default. This is a configuration error, not a per-event
// transient: registry validation prevents it, so hitting it means the
// snapshot was built outside the normal mutation path.
var ErrNoDefaultAgent = errors.New("no default agent configured")

// Decision is the outcome of a routing preview.
type Decision struct {
	AgentID      string `json:"agentId"`
	Matched      bool   `json:"matched"`
	BindingIndex int    `json:"bindingIndex"` // -1 when the default agent was used
	AgentName    string `json:"agentName,omitempty"`
	Workspace    string `json:"workspace,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Resolver maps inbound contexts to agents against the live snapshot.
// Resolve is a pure function of the snapshot and the context: no state is
// read or written besides the atomic snapshot load.
type Resolver struct {
	registry *registry.Registry
	log      *logging.Logger
}

// NewResolver creates a resolver backed by the given registry.
func NewResolver(reg *registry.Registry, log *logging.Logger) *Resolver {
	return &Resolver{
		registry: reg,
		log:      log.Sub("routing"),
	}
}

// Resolve returns the id of the agent responsible for ctx. Bindings are
// evaluated in declared order and the first match wins; declaration order
// is the only tie-break. When nothing matches, the default agent handles
// the event.
func (r *Resolver) Resolve(ctx domain.MatchContext) (string, error) {
	snap := r.registry.Snapshot()

	decision := resolveAgainst(snap, ctx)
	if decision.AgentID == "" {
		r.log.Error().
			Str("channel", ctx.Channel).
			Str("accountId", ctx.AccountID).
			Msg("resolution failed: no default agent")
		return "", ErrNoDefaultAgent
	}

	r.log.Debug().
		Str("channel", ctx.Channel).
		Str("accountId", ctx.AccountID).
		Str("agent", decision.AgentID).
		Bool("matched", decision.Matched).
		Msg("resolved inbound event")
	return decision.AgentID, nil
}

// ValidateAgent reports whether an agent id exists in the live snapshot.
// Used before persisting bindings or allow-list entries that reference it.
func (r *Resolver) ValidateAgent(id string) bool {
	return r.registry.Snapshot().Has(id)
}

// TestRouting runs the resolution algorithm without committing anything
// and with no side effects, for previewing a binding set from the UI.
func (r *Resolver) TestRouting(ctx domain.MatchContext) (Decision, error) {
	decision := resolveAgainst(r.registry.Snapshot(), ctx)
	if decision.AgentID == "" {
		return Decision{BindingIndex: -1}, ErrNoDefaultAgent
	}
	return decision, nil
}

func resolveAgainst(snap *registry.Snapshot, ctx domain.MatchContext) Decision {
	for i, b := range snap.Bindings() {
		if !b.Match.Matches(ctx) {
			continue
		}
		agent, _ := snap.Agent(b.AgentID)
		return Decision{
			AgentID:      b.AgentID,
			Matched:      true,
			BindingIndex: i,
			AgentName:    agent.Name,
			Workspace:    agent.Workspace,
			Model:        agent.ModelOverride,
		}
	}

	id := snap.DefaultAgentID()
	if id == "" {
		return Decision{BindingIndex: -1}
	}
	agent := snap.DefaultAgent()
	return Decision{
		AgentID:      id,
		Matched:      false,
		BindingIndex: -1,
		AgentName:    agent.Name,
		Workspace:    agent.Workspace,
		Model:        agent.ModelOverride,
	}
}
