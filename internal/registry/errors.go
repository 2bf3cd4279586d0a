package registry

import "errors"

// Configuration-shape errors. All are raised at mutation (or load) time and
// reject the write; nothing is persisted when one is returned.
var (
	ErrEmptyAgentID           = errors.New("agent id must not be empty")
	ErrAgentExists            = errors.New("agent id already exists")
	ErrAgentNotFound          = errors.New("agent not found")
	ErrBindingNotFound        = errors.New("binding not found")
	ErrDanglingAgentReference = errors.New("dangling agent reference")
	ErrDuplicateDefaultAgent  = errors.New("more than one agent is flagged default")
	ErrMissingDefaultAgent    = errors.New("no agent is flagged default")
)
