// Package spawn enforces depth, fan-out and concurrency limits on
// recursive agent-spawns-agent chains.
package spawn

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/registry"
)

// NodeState is the lifecycle state of a spawn-tree node.
type NodeState string

const (
	StateActive    NodeState = "active"
	StateCompleted NodeState = "completed"
	StateFailed    NodeState = "failed"
)

// Outcome is the terminal state a caller assigns on Release.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// EventType classifies governor notifications.
type EventType string

const (
	EventGranted  EventType = "granted"
	EventDenied   EventType = "denied"
	EventReleased EventType = "released"
)

// Event is emitted after every Acquire and Release, outside the lock.
type Event struct {
	Type    EventType
	Ticket  uuid.UUID
	AgentID string
	Depth   int
	Reason  string // denial reason or terminal state
}

// EventListener receives governor events.
type EventListener func(Event)

// Ticket is the capability returned by a granted Acquire. It is required
// to Release the slot and may be passed as the parent of a further Acquire.
type Ticket struct {
	ID      uuid.UUID
	AgentID string
	Depth   int
}

// node is a spawn-tree entry. Owned exclusively by the governor; children
// are indexed separately so teardown can walk the subtree without child
// records holding their parent alive.
type node struct {
	id       uuid.UUID
	parent   uuid.UUID // uuid.Nil for roots
	root     uuid.UUID // self for roots
	agentID  string
	depth    int
	children int // total granted, never decremented
	state    NodeState
}

// Stats is a point-in-time counter summary.
type Stats struct {
	Active   int    `json:"active"`
	Roots    int    `json:"roots"`
	Granted  uint64 `json:"granted"`
	Denied   uint64 `json:"denied"`
	Released uint64 `json:"released"`
}

// NodeView is a read-only rendering of a spawn subtree.
type NodeView struct {
	ID       uuid.UUID  `json:"id"`
	AgentID  string     `json:"agentId"`
	Depth    int        `json:"depth"`
	State    NodeState  `json:"state"`
	Children []NodeView `json:"children,omitempty"`
}

// Governor tracks spawn trees and enforces the configured limits. Every
// check-and-increment in Acquire and every decrement in Release runs in one
// short critical section; no I/O happens under the lock.
type Governor struct {
	registry *registry.Registry
	log      *logging.Logger

	mu       sync.Mutex
	nodes    map[uuid.UUID]*node
	children map[uuid.UUID][]uuid.UUID
	active   int
	granted  uint64
	denied   uint64
	released uint64

	listeners []EventListener
}

// NewGovernor creates a governor reading limits and agent definitions from
// the registry's live snapshot.
func NewGovernor(reg *registry.Registry, log *logging.Logger) *Governor {
	return &Governor{
		registry: reg,
		log:      log.Sub("spawn"),
		nodes:    make(map[uuid.UUID]*node),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

// OnEvent registers a listener invoked after every grant, denial and
// release. Listeners run outside the governor lock.
func (g *Governor) OnEvent(fn EventListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Acquire requests permission to run childAgentID under the given parent
// ticket; uuid.Nil starts a new root tree. Checks run in a fixed order and
// the first failing one decides the error: unknown agent, allow-list,
// depth, fan-out, concurrency. A denial reserves nothing.
func (g *Governor) Acquire(parentID uuid.UUID, childAgentID string) (Ticket, error) {
	snap := g.registry.Snapshot()
	limits := snap.Defaults()

	g.mu.Lock()

	if !snap.Has(childAgentID) {
		return g.denyLocked(childAgentID, fmt.Errorf("%w: %s", ErrUnknownAgent, childAgentID))
	}

	var parent *node
	if parentID != uuid.Nil {
		parent = g.nodes[parentID]
		if parent == nil || parent.state != StateActive {
			return g.denyLocked(childAgentID, fmt.Errorf("%w: parent ticket not active", ErrSpawnNotAllowed))
		}
		parentAgent, ok := snap.Agent(parent.agentID)
		if !ok || !parentAgent.MaySpawn(childAgentID) {
			return g.denyLocked(childAgentID, fmt.Errorf("%w: %s may not spawn %s", ErrSpawnNotAllowed, parent.agentID, childAgentID))
		}
	}

	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	if limits.MaxSpawnDepth != nil && depth > *limits.MaxSpawnDepth {
		return g.denyLocked(childAgentID, fmt.Errorf("%w: depth %d > %d", ErrMaxDepthExceeded, depth, *limits.MaxSpawnDepth))
	}
	if parent != nil && limits.MaxChildrenPerAgent != nil && parent.children >= *limits.MaxChildrenPerAgent {
		return g.denyLocked(childAgentID, fmt.Errorf("%w: %s already has %d children", ErrMaxChildrenExceeded, parent.agentID, parent.children))
	}
	if limits.MaxConcurrent != nil && g.active >= *limits.MaxConcurrent {
		return g.denyLocked(childAgentID, fmt.Errorf("%w: %d active", ErrMaxConcurrentExceeded, g.active))
	}

	n := &node{
		id:      uuid.New(),
		parent:  parentID,
		agentID: childAgentID,
		depth:   depth,
		state:   StateActive,
	}
	if parent == nil {
		n.root = n.id
	} else {
		n.root = parent.root
		parent.children++
		g.children[parent.id] = append(g.children[parent.id], n.id)
	}
	g.nodes[n.id] = n
	g.active++
	g.granted++

	ticket := Ticket{ID: n.id, AgentID: childAgentID, Depth: depth}
	listeners := g.listenersLocked()
	g.mu.Unlock()

	g.log.Debug().
		Str("ticket", ticket.ID.String()).
		Str("agent", childAgentID).
		Int("depth", depth).
		Msg("spawn granted")
	emit(listeners, Event{Type: EventGranted, Ticket: ticket.ID, AgentID: childAgentID, Depth: depth})
	return ticket, nil
}

// Release transitions the ticket's node to the given terminal state and
// frees its concurrency slot. Releasing a root tears down its whole tree:
// every still-active descendant is force-failed so no quota leaks when a
// subagent never releases itself. A second Release of the same ticket
// returns ErrDoubleRelease and changes nothing.
func (g *Governor) Release(ticketID uuid.UUID, outcome Outcome) error {
	terminal, err := terminalState(outcome)
	if err != nil {
		return err
	}

	g.mu.Lock()

	n, ok := g.nodes[ticketID]
	if !ok || n.state != StateActive {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDoubleRelease, ticketID)
	}

	n.state = terminal
	g.active--
	g.released++

	events := []Event{{Type: EventReleased, Ticket: n.id, AgentID: n.agentID, Depth: n.depth, Reason: string(terminal)}}
	if n.parent == uuid.Nil {
		events = append(events, g.teardownLocked(n)...)
	}

	listeners := g.listenersLocked()
	g.mu.Unlock()

	g.log.Debug().
		Str("ticket", ticketID.String()).
		Str("agent", n.agentID).
		Str("state", string(terminal)).
		Msg("spawn released")
	for _, ev := range events {
		emit(listeners, ev)
	}
	return nil
}

// teardownLocked force-releases every still-active descendant of a
// terminal root and removes the whole tree from the arena. Returns the
// release events for the forced nodes.
func (g *Governor) teardownLocked(root *node) []Event {
	var events []Event
	stack := []uuid.UUID{root.id}
	tree := []uuid.UUID{}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tree = append(tree, id)

		for _, childID := range g.children[id] {
			stack = append(stack, childID)
			child := g.nodes[childID]
			if child.state != StateActive {
				continue
			}
			child.state = StateFailed
			g.active--
			g.released++
			events = append(events, Event{
				Type:    EventReleased,
				Ticket:  child.id,
				AgentID: child.agentID,
				Depth:   child.depth,
				Reason:  "cancelled by root teardown",
			})
		}
	}

	for _, id := range tree {
		delete(g.nodes, id)
		delete(g.children, id)
	}

	if len(events) > 0 {
		g.log.Warn().
			Str("root", root.id.String()).
			Int("cancelled", len(events)).
			Msg("force-released active descendants on root teardown")
	}
	return events
}

// Status returns current counters.
func (g *Governor) Status() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	roots := 0
	for _, n := range g.nodes {
		if n.parent == uuid.Nil {
			roots++
		}
	}
	return Stats{
		Active:   g.active,
		Roots:    roots,
		Granted:  g.granted,
		Denied:   g.denied,
		Released: g.released,
	}
}

// Trees renders every live spawn tree, roots in unspecified order.
func (g *Governor) Trees() []NodeView {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []NodeView
	for _, n := range g.nodes {
		if n.parent == uuid.Nil {
			out = append(out, g.viewLocked(n))
		}
	}
	return out
}

// Tree renders the subtree under the given ticket, or false if its node is
// gone.
func (g *Governor) Tree(id uuid.UUID) (NodeView, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return NodeView{}, false
	}
	return g.viewLocked(n), true
}

func (g *Governor) viewLocked(n *node) NodeView {
	view := NodeView{ID: n.id, AgentID: n.agentID, Depth: n.depth, State: n.state}
	for _, childID := range g.children[n.id] {
		view.Children = append(view.Children, g.viewLocked(g.nodes[childID]))
	}
	return view
}

// denyLocked records a denial, releases the lock and emits the event.
func (g *Governor) denyLocked(agentID string, err error) (Ticket, error) {
	g.denied++
	listeners := g.listenersLocked()
	g.mu.Unlock()

	g.log.Debug().Str("agent", agentID).Err(err).Msg("spawn denied")
	emit(listeners, Event{Type: EventDenied, AgentID: agentID, Reason: err.Error()})
	return Ticket{}, err
}

func (g *Governor) listenersLocked() []EventListener {
	out := make([]EventListener, len(g.listeners))
	copy(out, g.listeners)
	return out
}

func emit(listeners []EventListener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

func terminalState(outcome Outcome) (NodeState, error) {
	switch outcome {
	case OutcomeCompleted:
		return StateCompleted, nil
	case OutcomeFailed:
		return StateFailed, nil
	default:
		return "", fmt.Errorf("invalid release outcome %q", outcome)
	}
}
