package registry

import (
	"errors"
	"testing"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func testRegistry(t *testing.T) (*Registry, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	reg := New(mem, testLogger())
	require.NoError(t, reg.Load())
	return reg, mem
}

func TestLoad_SeedsDefaultAgent(t *testing.T) {
	reg, mem := testRegistry(t)

	snap := reg.Snapshot()
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "main", snap.DefaultAgentID())

	// The seed is persisted, not just in memory.
	state, err := mem.Load()
	require.NoError(t, err)
	require.Len(t, state.Agents, 1)
	assert.True(t, state.Agents[0].IsDefault)
}

func TestLoad_RejectsInvalidPersistedState(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Save(store.State{
		Agents: []domain.Agent{{ID: "a"}, {ID: "b"}}, // nobody default
	}))

	reg := New(mem, testLogger())
	err := reg.Load()
	assert.ErrorIs(t, err, ErrMissingDefaultAgent)
}

func TestCreateAgent(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "coder", Name: "Coder"}))

	snap := reg.Snapshot()
	assert.True(t, snap.Has("coder"))
	assert.Equal(t, "main", snap.DefaultAgentID())
}

func TestCreateAgent_DuplicateID(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.CreateAgent(domain.Agent{ID: "main"})
	assert.ErrorIs(t, err, ErrAgentExists)
}

func TestCreateAgent_EmptyID(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.CreateAgent(domain.Agent{})
	assert.ErrorIs(t, err, ErrEmptyAgentID)
}

func TestCreateAgent_SecondDefaultRejected(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.CreateAgent(domain.Agent{ID: "coder", IsDefault: true})
	assert.ErrorIs(t, err, ErrDuplicateDefaultAgent)
	assert.False(t, reg.Snapshot().Has("coder"), "rejected write must not commit")
}

func TestUpdateAgent(t *testing.T) {
	reg, _ := testRegistry(t)
	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "coder"}))

	require.NoError(t, reg.UpdateAgent(domain.Agent{ID: "coder", Workspace: "/work"}))

	coder, ok := reg.Snapshot().Agent("coder")
	require.True(t, ok)
	assert.Equal(t, "/work", coder.Workspace)
}

func TestUpdateAgent_NotFound(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.UpdateAgent(domain.Agent{ID: "ghost"})
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestUpdateAgent_ClearingOnlyDefaultRejected(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.UpdateAgent(domain.Agent{ID: "main", IsDefault: false})
	assert.ErrorIs(t, err, ErrMissingDefaultAgent)
	assert.Equal(t, "main", reg.Snapshot().DefaultAgentID())
}

func TestUpdateAgent_DanglingAllowListRejected(t *testing.T) {
	reg, _ := testRegistry(t)
	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "coder"}))

	allowed := []string{"ghost"}
	err := reg.UpdateAgent(domain.Agent{ID: "coder", AllowedSubagents: &allowed})
	assert.ErrorIs(t, err, ErrDanglingAgentReference)
}

func TestDeleteAgent_CascadesBindingsAndAllowLists(t *testing.T) {
	reg, _ := testRegistry(t)
	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "coder"}))
	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "sub1"}))

	allowed := []string{"sub1"}
	require.NoError(t, reg.UpdateAgent(domain.Agent{ID: "coder", AllowedSubagents: &allowed}))
	require.NoError(t, reg.CreateBinding(domain.Binding{
		Match: domain.MatchRule{Channel: "telegram"}, AgentID: "sub1",
	}))
	require.NoError(t, reg.CreateBinding(domain.Binding{
		Match: domain.MatchRule{Channel: "discord"}, AgentID: "coder",
	}))

	require.NoError(t, reg.DeleteAgent("sub1"))

	snap := reg.Snapshot()
	assert.False(t, snap.Has("sub1"))
	require.Len(t, snap.Bindings(), 1)
	assert.Equal(t, "coder", snap.Bindings()[0].AgentID)

	coder, _ := snap.Agent("coder")
	require.NotNil(t, coder.AllowedSubagents)
	assert.Empty(t, *coder.AllowedSubagents)
}

func TestDeleteAgent_DefaultRejected(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.DeleteAgent("main")
	assert.ErrorIs(t, err, ErrMissingDefaultAgent)
	assert.True(t, reg.Snapshot().Has("main"))
}

func TestDeleteAgent_NotFound(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.DeleteAgent("ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestSetDefaultAgent(t *testing.T) {
	reg, _ := testRegistry(t)
	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "coder"}))

	require.NoError(t, reg.SetDefaultAgent("coder"))

	snap := reg.Snapshot()
	assert.Equal(t, "coder", snap.DefaultAgentID())
	main, _ := snap.Agent("main")
	assert.False(t, main.IsDefault)
}

func TestSetDefaultAgent_NotFound(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.SetDefaultAgent("ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
	assert.Equal(t, "main", reg.Snapshot().DefaultAgentID())
}

func TestCreateBinding_DanglingRejected(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.CreateBinding(domain.Binding{AgentID: "ghost"})
	assert.ErrorIs(t, err, ErrDanglingAgentReference)
	assert.Empty(t, reg.Snapshot().Bindings())
}

func TestDeleteBinding(t *testing.T) {
	reg, _ := testRegistry(t)
	require.NoError(t, reg.CreateBinding(domain.Binding{Match: domain.MatchRule{Channel: "a"}, AgentID: "main"}))
	require.NoError(t, reg.CreateBinding(domain.Binding{Match: domain.MatchRule{Channel: "b"}, AgentID: "main"}))

	require.NoError(t, reg.DeleteBinding(0))

	bindings := reg.Snapshot().Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "b", bindings[0].Match.Channel)
}

func TestDeleteBinding_OutOfRange(t *testing.T) {
	reg, _ := testRegistry(t)

	assert.ErrorIs(t, reg.DeleteBinding(0), ErrBindingNotFound)
	assert.ErrorIs(t, reg.DeleteBinding(-1), ErrBindingNotFound)
}

func TestUpdateSubagentDefaults(t *testing.T) {
	reg, mem := testRegistry(t)

	depth := 3
	require.NoError(t, reg.UpdateSubagentDefaults(domain.SubagentDefaults{MaxSpawnDepth: &depth}))

	d := reg.Snapshot().Defaults()
	require.NotNil(t, d.MaxSpawnDepth)
	assert.Equal(t, 3, *d.MaxSpawnDepth)

	state, err := mem.Load()
	require.NoError(t, err)
	require.NotNil(t, state.Defaults.MaxSpawnDepth)
	assert.Equal(t, 3, *state.Defaults.MaxSpawnDepth)
}

func TestMutate_SaveFailureLeavesSnapshotUntouched(t *testing.T) {
	reg, mem := testRegistry(t)

	mem.FailSave = errors.New("disk full")
	err := reg.CreateAgent(domain.Agent{ID: "coder"})
	require.Error(t, err)

	assert.False(t, reg.Snapshot().Has("coder"))
	state, _ := mem.Load()
	assert.Len(t, state.Agents, 1)
}

func TestOnSwap_NotifiedAfterCommit(t *testing.T) {
	reg, _ := testRegistry(t)

	var seen []*Snapshot
	reg.OnSwap(func(s *Snapshot) { seen = append(seen, s) })

	require.NoError(t, reg.CreateAgent(domain.Agent{ID: "coder"}))
	require.Error(t, reg.CreateAgent(domain.Agent{ID: "coder"}))

	require.Len(t, seen, 1, "rejected mutation must not notify")
	assert.True(t, seen[0].Has("coder"))
}

func TestReload_SwapsToExternalState(t *testing.T) {
	reg, mem := testRegistry(t)

	require.NoError(t, mem.Save(store.State{
		Agents: []domain.Agent{
			{ID: "main", IsDefault: true},
			{ID: "external"},
		},
	}))

	require.NoError(t, reg.Reload())
	assert.True(t, reg.Snapshot().Has("external"))
}

func TestReload_InvalidStateKeepsCurrentSnapshot(t *testing.T) {
	reg, mem := testRegistry(t)

	require.NoError(t, mem.Save(store.State{
		Agents: []domain.Agent{{ID: "a"}, {ID: "a"}},
	}))

	require.Error(t, reg.Reload())
	assert.True(t, reg.Snapshot().Has("main"))
}
