// Package domain holds the core types shared across switchboard.
package domain

import "slices"

// Agent is a configured agent definition.
//
// AllowedSubagents is nil when the agent may not spawn subagents at all;
// an empty non-nil slice means the same thing in practice but is preserved
// as written. Unset is not false.
type Agent struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	Workspace        string    `json:"workspace,omitempty"`
	AgentDir         string    `json:"agentDir,omitempty"`
	ModelOverride    string    `json:"modelOverride,omitempty"`
	Sandbox          bool      `json:"sandbox,omitempty"`
	Heartbeat        string    `json:"heartbeat,omitempty"` // cron spec, empty = no heartbeat
	IsDefault        bool      `json:"isDefault,omitempty"`
	AllowedSubagents *[]string `json:"allowedSubagents,omitempty"`
}

// MaySpawn reports whether this agent's allow-list permits spawning childID.
func (a Agent) MaySpawn(childID string) bool {
	if a.AllowedSubagents == nil {
		return false
	}
	return slices.Contains(*a.AllowedSubagents, childID)
}

// Clone returns a deep copy, so snapshots never alias caller-owned slices.
func (a Agent) Clone() Agent {
	out := a
	if a.AllowedSubagents != nil {
		allowed := slices.Clone(*a.AllowedSubagents)
		out.AllowedSubagents = &allowed
	}
	return out
}

// SubagentDefaults are the fleet-wide spawn limits. A nil field means that
// dimension is not enforced.
type SubagentDefaults struct {
	MaxSpawnDepth       *int `json:"maxSpawnDepth,omitempty"`
	MaxChildrenPerAgent *int `json:"maxChildrenPerAgent,omitempty"`
	MaxConcurrent       *int `json:"maxConcurrent,omitempty"`
}

// Clone returns a deep copy of the defaults.
func (d SubagentDefaults) Clone() SubagentDefaults {
	out := SubagentDefaults{}
	if d.MaxSpawnDepth != nil {
		v := *d.MaxSpawnDepth
		out.MaxSpawnDepth = &v
	}
	if d.MaxChildrenPerAgent != nil {
		v := *d.MaxChildrenPerAgent
		out.MaxChildrenPerAgent = &v
	}
	if d.MaxConcurrent != nil {
		v := *d.MaxConcurrent
		out.MaxConcurrent = &v
	}
	return out
}
