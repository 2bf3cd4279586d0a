package domain

// MatchRule is a set of optional equality constraints tested against an
// inbound MatchContext. An empty field is a wildcard; a rule with all
// fields empty is a catch-all.
type MatchRule struct {
	Channel   string `json:"channel,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	Peer      string `json:"peer,omitempty"`
}

// Matches reports whether every set field equals the corresponding
// context field.
func (r MatchRule) Matches(ctx MatchContext) bool {
	if r.Channel != "" && r.Channel != ctx.Channel {
		return false
	}
	if r.AccountID != "" && r.AccountID != ctx.AccountID {
		return false
	}
	if r.Peer != "" && r.Peer != ctx.Peer {
		return false
	}
	return true
}

// IsCatchAll reports whether the rule matches every context.
func (r MatchRule) IsCatchAll() bool {
	return r == MatchRule{}
}

// Binding maps a match rule to the agent responsible for matching events.
// Bindings are evaluated in declared order; the first match wins.
type Binding struct {
	Match   MatchRule `json:"match"`
	AgentID string    `json:"agentId"`
}

// MatchContext describes an inbound conversational event as supplied by an
// external transport. Empty fields are absent.
type MatchContext struct {
	Channel   string `json:"channel,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	Peer      string `json:"peer,omitempty"`
}
