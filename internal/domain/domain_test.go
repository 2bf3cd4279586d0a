package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestMatchRule_AllFieldsSet(t *testing.T) {
	rule := MatchRule{Channel: "telegram", AccountID: "bot1", Peer: "alice"}

	assert.True(t, rule.Matches(MatchContext{Channel: "telegram", AccountID: "bot1", Peer: "alice"}))
	assert.False(t, rule.Matches(MatchContext{Channel: "telegram", AccountID: "bot1", Peer: "bob"}))
	assert.False(t, rule.Matches(MatchContext{Channel: "discord", AccountID: "bot1", Peer: "alice"}))
}

func TestMatchRule_UnsetFieldsAreWildcards(t *testing.T) {
	rule := MatchRule{Channel: "telegram"}

	assert.True(t, rule.Matches(MatchContext{Channel: "telegram"}))
	assert.True(t, rule.Matches(MatchContext{Channel: "telegram", AccountID: "anything", Peer: "anyone"}))
	assert.False(t, rule.Matches(MatchContext{Channel: "discord"}))
}

func TestMatchRule_CatchAll(t *testing.T) {
	rule := MatchRule{}

	assert.True(t, rule.IsCatchAll())
	assert.True(t, rule.Matches(MatchContext{}))
	assert.True(t, rule.Matches(MatchContext{Channel: "irc", AccountID: "x", Peer: "y"}))
}

func TestMatchRule_SetFieldDoesNotMatchEmptyContext(t *testing.T) {
	rule := MatchRule{AccountID: "bot1"}
	assert.False(t, rule.Matches(MatchContext{}))
}

func TestAgent_MaySpawn(t *testing.T) {
	allowed := []string{"sub1", "sub2"}
	agent := Agent{ID: "coder", AllowedSubagents: &allowed}

	assert.True(t, agent.MaySpawn("sub1"))
	assert.False(t, agent.MaySpawn("sub3"))
}

func TestAgent_MaySpawn_NilAllowList(t *testing.T) {
	agent := Agent{ID: "coder"}
	assert.False(t, agent.MaySpawn("sub1"))
}

func TestAgent_Clone_DoesNotAliasAllowList(t *testing.T) {
	allowed := []string{"sub1"}
	agent := Agent{ID: "coder", AllowedSubagents: &allowed}

	clone := agent.Clone()
	(*clone.AllowedSubagents)[0] = "other"

	assert.Equal(t, "sub1", allowed[0])
}

func TestSubagentDefaults_Clone(t *testing.T) {
	d := SubagentDefaults{
		MaxSpawnDepth: intPtr(3),
		MaxConcurrent: intPtr(8),
	}

	clone := d.Clone()
	*clone.MaxSpawnDepth = 99

	assert.Equal(t, 3, *d.MaxSpawnDepth)
	assert.Equal(t, 8, *clone.MaxConcurrent)
	assert.Nil(t, clone.MaxChildrenPerAgent)
}
