package spawn

import "errors"

// Acquire denials. Configuration-shape errors (unknown agent, allow-list
// violation) and capacity errors are expected synchronous outcomes; the
// caller handles denial, the governor never panics over them.
var (
	ErrUnknownAgent          = errors.New("unknown agent")
	ErrSpawnNotAllowed       = errors.New("spawn not allowed by parent allow-list")
	ErrMaxDepthExceeded      = errors.New("max spawn depth exceeded")
	ErrMaxChildrenExceeded   = errors.New("max children per agent exceeded")
	ErrMaxConcurrentExceeded = errors.New("max concurrent subagents exceeded")
)

// ErrDoubleRelease reports a second Release of the same ticket. It flags a
// caller bug; counters are left untouched.
var ErrDoubleRelease = errors.New("ticket already released")
