package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/routing"
)

func TestIsAllowedConfigPath(t *testing.T) {
	tests := []struct {
		key     string
		allowed bool
	}{
		{"gateway.port", true},
		{"gateway.bind", true},
		{"gateway.customBindHost", true},
		{"gateway.controlUi.allowedOrigins", true},
		{"logging.level", true},
		{"watch.enabled", true},
		{"store.backend", true},
		{"gateway.auth.token", false},
		{"gateway.auth.password", false},
		{"gateway.tls.keyPath", false},
		{"store.path", false},
		{"hooks.spawnDenied", false},
		{"", false},
		{"gateway", false}, // whole-section access is not a listed prefix
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.allowed, isAllowedConfigPath(tt.key))
		})
	}
}

func TestRPCConfigGet(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "cfg-1", "config.get", configGetParams{Key: "gateway.port"})
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)

	var result map[string]any
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, "gateway.port", result["key"])
	assert.Equal(t, float64(18920), result["value"])
}

func TestRPCConfigGetForbiddenPath(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "cfg-2", "config.get", configGetParams{Key: "gateway.auth.token"})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "forbidden", resp.Error.Code)
}

func TestRPCConfigSet(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "cfg-3", "config.set", configSetParams{Key: "logging.level", Value: "debug"})
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)

	resp = call(t, conn, "cfg-4", "config.get", configGetParams{Key: "logging.level"})
	require.True(t, *resp.OK)
	var result map[string]any
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, "debug", result["value"])
}

func TestRPCConfigSetForbiddenPath(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "cfg-5", "config.set", configSetParams{Key: "gateway.auth.token", Value: "pwned"})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "forbidden", resp.Error.Code)
}

func TestRPCAgentsList(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "ag-1", "agents.list", nil)
	require.True(t, *resp.OK)

	var result struct {
		Agents       []domain.Agent `json:"agents"`
		DefaultAgent string         `json:"defaultAgent"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Len(t, result.Agents, 3)
	assert.Equal(t, "main", result.DefaultAgent)
}

func TestRPCAgentsCreateAndDelete(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "ag-2", "agents.create", domain.Agent{ID: "reviewer", Name: "Reviewer"})
	require.True(t, *resp.OK)

	resp = call(t, conn, "ag-3", "agents.create", domain.Agent{ID: "reviewer"})
	require.False(t, *resp.OK)
	assert.Equal(t, "agent_exists", resp.Error.Code)

	resp = call(t, conn, "ag-4", "agents.delete", agentIDParams{AgentID: "reviewer"})
	require.True(t, *resp.OK)

	resp = call(t, conn, "ag-5", "agents.delete", agentIDParams{AgentID: "reviewer"})
	require.False(t, *resp.OK)
	assert.Equal(t, "agent_not_found", resp.Error.Code)
}

func TestRPCAgentsCreateEmptyID(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "ag-6", "agents.create", domain.Agent{Name: "nameless"})
	require.False(t, *resp.OK)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestRPCAgentsDeleteDefaultRejected(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "ag-7", "agents.delete", agentIDParams{AgentID: "main"})
	require.False(t, *resp.OK)
	assert.Equal(t, "missing_default_agent", resp.Error.Code)
}

func TestRPCAgentsSetDefault(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "ag-8", "agents.setDefault", agentIDParams{AgentID: "coder"})
	require.True(t, *resp.OK)

	resp = call(t, conn, "ag-9", "agents.list", nil)
	require.True(t, *resp.OK)
	var result struct {
		DefaultAgent string `json:"defaultAgent"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, "coder", result.DefaultAgent)
}

func TestRPCBindingsCreateAndDelete(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "bd-1", "bindings.create", domain.Binding{
		Match:   domain.MatchRule{Channel: "discord"},
		AgentID: "sub1",
	})
	require.True(t, *resp.OK)

	resp = call(t, conn, "bd-2", "bindings.list", nil)
	require.True(t, *resp.OK)
	var result struct {
		Bindings []domain.Binding `json:"bindings"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	require.Len(t, result.Bindings, 2)
	assert.Equal(t, "sub1", result.Bindings[1].AgentID)

	resp = call(t, conn, "bd-3", "bindings.delete", bindingDeleteParams{Index: 1})
	require.True(t, *resp.OK)

	resp = call(t, conn, "bd-4", "bindings.delete", bindingDeleteParams{Index: 5})
	require.False(t, *resp.OK)
	assert.Equal(t, "binding_not_found", resp.Error.Code)
}

func TestRPCBindingsCreateDanglingAgent(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "bd-5", "bindings.create", domain.Binding{
		Match:   domain.MatchRule{Channel: "irc"},
		AgentID: "ghost",
	})
	require.False(t, *resp.OK)
	assert.Equal(t, "dangling_agent_reference", resp.Error.Code)
}

func TestRPCDefaultsUpdate(t *testing.T) {
	conn := authenticatedConn(t)

	depth := 3
	resp := call(t, conn, "df-1", "defaults.update", domain.SubagentDefaults{MaxSpawnDepth: &depth})
	require.True(t, *resp.OK)

	resp = call(t, conn, "df-2", "defaults.get", nil)
	require.True(t, *resp.OK)
	var result struct {
		Defaults domain.SubagentDefaults `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	require.NotNil(t, result.Defaults.MaxSpawnDepth)
	assert.Equal(t, 3, *result.Defaults.MaxSpawnDepth)
}

func TestRPCRoutingResolve(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "rt-1", "routing.resolve", domain.MatchContext{
		Channel: "telegram", AccountID: "bot1",
	})
	require.True(t, *resp.OK)
	var result map[string]any
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, "coder", result["agentId"])
}

func TestRPCRoutingResolveFallsBackToDefault(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "rt-2", "routing.resolve", domain.MatchContext{Channel: "smoke-signal"})
	require.True(t, *resp.OK)
	var result map[string]any
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, "main", result["agentId"])
}

func TestRPCRoutingTest(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "rt-3", "routing.test", domain.MatchContext{
		Channel: "telegram", AccountID: "bot1",
	})
	require.True(t, *resp.OK)

	var decision routing.Decision
	require.NoError(t, json.Unmarshal(resp.Payload, &decision))
	assert.Equal(t, "coder", decision.AgentID)
	assert.True(t, decision.Matched)
	assert.Equal(t, 0, decision.BindingIndex)
}

func TestRPCSpawnAcquireAndRelease(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "sp-1", "spawn.acquire", spawnAcquireParams{AgentID: "main"})
	require.True(t, *resp.OK)

	var granted struct {
		Ticket  string `json:"ticket"`
		AgentID string `json:"agentId"`
		Depth   int    `json:"depth"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &granted))
	assert.NotEmpty(t, granted.Ticket)
	assert.Equal(t, "main", granted.AgentID)
	assert.Equal(t, 0, granted.Depth)

	resp = call(t, conn, "sp-2", "spawn.acquire", spawnAcquireParams{
		ParentTicket: granted.Ticket, AgentID: "coder",
	})
	require.True(t, *resp.OK)
	var child struct {
		Ticket string `json:"ticket"`
		Depth  int    `json:"depth"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &child))
	assert.Equal(t, 1, child.Depth)

	resp = call(t, conn, "sp-3", "spawn.release", spawnReleaseParams{Ticket: child.Ticket})
	require.True(t, *resp.OK)

	resp = call(t, conn, "sp-4", "spawn.release", spawnReleaseParams{Ticket: granted.Ticket, Outcome: "completed"})
	require.True(t, *resp.OK)

	resp = call(t, conn, "sp-5", "spawn.release", spawnReleaseParams{Ticket: granted.Ticket})
	require.False(t, *resp.OK)
	assert.Equal(t, "double_release", resp.Error.Code)
}

func TestRPCSpawnAcquireDenied(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "sp-6", "spawn.acquire", spawnAcquireParams{AgentID: "main"})
	require.True(t, *resp.OK)
	var granted struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &granted))

	// main's allow-list permits coder only
	resp = call(t, conn, "sp-7", "spawn.acquire", spawnAcquireParams{
		ParentTicket: granted.Ticket, AgentID: "sub1",
	})
	require.False(t, *resp.OK)
	assert.Equal(t, "spawn_not_allowed", resp.Error.Code)

	resp = call(t, conn, "sp-8", "spawn.acquire", spawnAcquireParams{
		ParentTicket: granted.Ticket, AgentID: "ghost",
	})
	require.False(t, *resp.OK)
	assert.Equal(t, "unknown_agent", resp.Error.Code)
}

func TestRPCSpawnReleaseInvalidOutcome(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "sp-9", "spawn.acquire", spawnAcquireParams{AgentID: "main"})
	require.True(t, *resp.OK)
	var granted struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &granted))

	resp = call(t, conn, "sp-10", "spawn.release", spawnReleaseParams{
		Ticket: granted.Ticket, Outcome: "exploded",
	})
	require.False(t, *resp.OK)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestRPCSpawnStatusAndTree(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "sp-11", "spawn.acquire", spawnAcquireParams{AgentID: "main"})
	require.True(t, *resp.OK)
	var granted struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &granted))

	resp = call(t, conn, "sp-12", "spawn.status", nil)
	require.True(t, *resp.OK)
	var status struct {
		Active  int `json:"active"`
		Granted int `json:"granted"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &status))
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, 1, status.Granted)

	resp = call(t, conn, "sp-13", "spawn.tree", spawnTreeParams{Ticket: granted.Ticket})
	require.True(t, *resp.OK)
	var tree struct {
		AgentID string `json:"agentId"`
		State   string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &tree))
	assert.Equal(t, "main", tree.AgentID)
	assert.Equal(t, "active", tree.State)

	resp = call(t, conn, "sp-14", "spawn.tree", spawnTreeParams{Ticket: "00000000-0000-0000-0000-000000000001"})
	require.False(t, *resp.OK)
	assert.Equal(t, "not_found", resp.Error.Code)
}
