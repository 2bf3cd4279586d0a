// Package heartbeat schedules periodic wake-ups for agents that declare a
// heartbeat interval.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/registry"
)

// TickFunc is invoked on every heartbeat fire with the owning agent id.
type TickFunc func(agentID string)

// Job describes one scheduled heartbeat.
type Job struct {
	AgentID string    `json:"agentId"`
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next"`
}

// Scheduler keeps one cron entry per agent with a heartbeat spec and
// re-syncs the entry set whenever the configuration snapshot swaps.
// Heartbeat specs use cron syntax, including @every durations.
type Scheduler struct {
	registry *registry.Registry
	log      *logging.Logger
	onTick   TickFunc

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
}

// NewScheduler creates a scheduler; onTick may be nil.
func NewScheduler(reg *registry.Registry, log *logging.Logger, onTick TickFunc) *Scheduler {
	return &Scheduler{
		registry: reg,
		log:      log.Sub("heartbeat"),
		onTick:   onTick,
		cron:     cron.New(),
		entries:  make(map[string]cron.EntryID),
		specs:    make(map[string]string),
	}
}

// Run blocks until ctx is cancelled, keeping schedules in sync with the
// registry and waiting for in-flight ticks on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Sync(s.registry.Snapshot())
	s.registry.OnSwap(s.Sync)

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// Sync reconciles cron entries with the heartbeat specs in the snapshot:
// removed or changed agents lose their old entry, new specs gain one.
// Invalid specs are logged and skipped, never fatal.
func (s *Scheduler) Sync(snap *registry.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]string)
	for _, a := range snap.Agents() {
		if a.Heartbeat != "" {
			want[a.ID] = a.Heartbeat
		}
	}

	for agentID, entryID := range s.entries {
		if spec, ok := want[agentID]; ok && spec == s.specs[agentID] {
			continue
		}
		s.cron.Remove(entryID)
		delete(s.entries, agentID)
		delete(s.specs, agentID)
		s.log.Debug().Str("agent", agentID).Msg("heartbeat unscheduled")
	}

	for agentID, spec := range want {
		if _, ok := s.entries[agentID]; ok {
			continue
		}
		id := agentID
		entryID, err := s.cron.AddFunc(spec, func() { s.tick(id) })
		if err != nil {
			s.log.Warn().Str("agent", agentID).Str("spec", spec).Err(err).Msg("invalid heartbeat spec")
			continue
		}
		s.entries[agentID] = entryID
		s.specs[agentID] = spec
		s.log.Debug().Str("agent", agentID).Str("spec", spec).Msg("heartbeat scheduled")
	}
}

func (s *Scheduler) tick(agentID string) {
	s.log.Debug().Str("agent", agentID).Msg("heartbeat tick")
	if s.onTick != nil {
		s.onTick(agentID)
	}
}

// Jobs returns the currently scheduled heartbeats.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.entries))
	for agentID, entryID := range s.entries {
		jobs = append(jobs, Job{
			AgentID: agentID,
			Spec:    s.specs[agentID],
			Next:    s.cron.Entry(entryID).Next,
		})
	}
	return jobs
}
