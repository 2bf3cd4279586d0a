package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/hooks"
	"github.com/soyeahso/switchboard/internal/registry"
	"github.com/soyeahso/switchboard/internal/spawn"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied by default (allowlist).
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.controlUi",
	"logging",
	"watch",
	"store.backend",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers. Methods whose
// backing component is not wired are simply not registered; calling one
// yields method_not_found.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("status", s.rpcStatus)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)

	if s.registry != nil {
		s.Handle("agents.list", s.rpcAgentsList)
		s.Handle("agents.create", s.rpcAgentsCreate)
		s.Handle("agents.update", s.rpcAgentsUpdate)
		s.Handle("agents.delete", s.rpcAgentsDelete)
		s.Handle("agents.setDefault", s.rpcAgentsSetDefault)

		s.Handle("bindings.list", s.rpcBindingsList)
		s.Handle("bindings.create", s.rpcBindingsCreate)
		s.Handle("bindings.delete", s.rpcBindingsDelete)

		s.Handle("defaults.get", s.rpcDefaultsGet)
		s.Handle("defaults.update", s.rpcDefaultsUpdate)
	}

	if s.resolver != nil {
		s.Handle("routing.resolve", s.rpcRoutingResolve)
		s.Handle("routing.test", s.rpcRoutingTest)
	}

	if s.governor != nil {
		s.Handle("spawn.acquire", s.rpcSpawnAcquire)
		s.Handle("spawn.release", s.rpcSpawnRelease)
		s.Handle("spawn.status", s.rpcSpawnStatus)
		s.Handle("spawn.tree", s.rpcSpawnTree)
	}
}

// respondMutationError maps registry errors onto protocol error codes.
func respondMutationError(rc *RequestContext, err error) {
	code := "internal_error"
	switch {
	case errors.Is(err, registry.ErrEmptyAgentID):
		code = "invalid_params"
	case errors.Is(err, registry.ErrAgentExists):
		code = "agent_exists"
	case errors.Is(err, registry.ErrAgentNotFound):
		code = "agent_not_found"
	case errors.Is(err, registry.ErrBindingNotFound):
		code = "binding_not_found"
	case errors.Is(err, registry.ErrDanglingAgentReference):
		code = "dangling_agent_reference"
	case errors.Is(err, registry.ErrDuplicateDefaultAgent):
		code = "duplicate_default_agent"
	case errors.Is(err, registry.ErrMissingDefaultAgent):
		code = "missing_default_agent"
	}
	rc.RespondError(code, err.Error())
}

// respondSpawnError maps governor errors onto protocol error codes.
func respondSpawnError(rc *RequestContext, err error) {
	code := "internal_error"
	switch {
	case errors.Is(err, spawn.ErrUnknownAgent):
		code = "unknown_agent"
	case errors.Is(err, spawn.ErrSpawnNotAllowed):
		code = "spawn_not_allowed"
	case errors.Is(err, spawn.ErrMaxDepthExceeded):
		code = "max_depth_exceeded"
	case errors.Is(err, spawn.ErrMaxChildrenExceeded):
		code = "max_children_exceeded"
	case errors.Is(err, spawn.ErrMaxConcurrentExceeded):
		code = "max_concurrent_exceeded"
	case errors.Is(err, spawn.ErrDoubleRelease):
		code = "double_release"
	}
	rc.RespondError(code, err.Error())
}

func (s *Server) emitHook(event string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.EmitAsync(context.Background(), event, data)
	}
}

// Built-in RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	})
}

func (s *Server) rpcStatus(rc *RequestContext) {
	status := map[string]any{
		"version":  s.version,
		"clients":  s.clients.Count(),
		"uptimeMs": time.Since(s.startedAt).Milliseconds(),
	}
	if s.registry != nil {
		snap := s.registry.Snapshot()
		status["agents"] = snap.Len()
		status["bindings"] = len(snap.Bindings())
		status["defaultAgent"] = snap.DefaultAgentID()
	}
	if s.governor != nil {
		status["spawn"] = s.governor.Status()
	}
	if s.scheduler != nil {
		status["heartbeats"] = s.scheduler.Jobs()
	}
	rc.Respond(status)
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError("invalid_params", "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError("forbidden", "access denied for config path: "+p.Key)
		return
	}

	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	s.mu.RLock()
	val, ok := config.GetValueAtPath(s.configRaw, path)
	s.mu.RUnlock()
	if !ok {
		rc.RespondError("not_found", "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError("invalid_params", "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError("forbidden", "cannot modify config path: "+p.Key)
		return
	}

	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	config.SetValueAtPath(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

// Agent management

func (s *Server) rpcAgentsList(rc *RequestContext) {
	snap := s.registry.Snapshot()
	rc.Respond(map[string]any{
		"agents":       snap.Agents(),
		"defaultAgent": snap.DefaultAgentID(),
	})
}

func (s *Server) rpcAgentsCreate(rc *RequestContext) {
	var agent domain.Agent
	if err := rc.Params(&agent); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.CreateAgent(agent); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventAgentCreated, map[string]any{"agentId": agent.ID})
	rc.Respond(map[string]any{"agentId": agent.ID})
}

func (s *Server) rpcAgentsUpdate(rc *RequestContext) {
	var agent domain.Agent
	if err := rc.Params(&agent); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.UpdateAgent(agent); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventAgentUpdated, map[string]any{"agentId": agent.ID})
	rc.Respond(map[string]any{"agentId": agent.ID})
}

type agentIDParams struct {
	AgentID string `json:"agentId"`
}

func (s *Server) rpcAgentsDelete(rc *RequestContext) {
	var p agentIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.DeleteAgent(p.AgentID); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventAgentDeleted, map[string]any{"agentId": p.AgentID})
	rc.Respond(map[string]any{"agentId": p.AgentID})
}

func (s *Server) rpcAgentsSetDefault(rc *RequestContext) {
	var p agentIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.SetDefaultAgent(p.AgentID); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventAgentUpdated, map[string]any{"agentId": p.AgentID, "default": true})
	rc.Respond(map[string]any{"agentId": p.AgentID})
}

// Binding management

func (s *Server) rpcBindingsList(rc *RequestContext) {
	rc.Respond(map[string]any{"bindings": s.registry.Snapshot().Bindings()})
}

func (s *Server) rpcBindingsCreate(rc *RequestContext) {
	var binding domain.Binding
	if err := rc.Params(&binding); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.CreateBinding(binding); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventBindingCreated, map[string]any{"agentId": binding.AgentID})
	rc.Respond(map[string]any{"agentId": binding.AgentID})
}

type bindingDeleteParams struct {
	Index int `json:"index"`
}

func (s *Server) rpcBindingsDelete(rc *RequestContext) {
	var p bindingDeleteParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.DeleteBinding(p.Index); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventBindingDeleted, map[string]any{"index": p.Index})
	rc.Respond(map[string]any{"index": p.Index})
}

// Spawn defaults

func (s *Server) rpcDefaultsGet(rc *RequestContext) {
	rc.Respond(map[string]any{"defaults": s.registry.Snapshot().Defaults()})
}

func (s *Server) rpcDefaultsUpdate(rc *RequestContext) {
	var d domain.SubagentDefaults
	if err := rc.Params(&d); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.registry.UpdateSubagentDefaults(d); err != nil {
		respondMutationError(rc, err)
		return
	}

	s.emitHook(hooks.EventDefaultsUpdated, nil)
	rc.Respond(map[string]any{"defaults": d})
}

// Routing

func (s *Server) rpcRoutingResolve(rc *RequestContext) {
	var ctx domain.MatchContext
	if err := rc.Params(&ctx); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	agentID, err := s.resolver.Resolve(ctx)
	if err != nil {
		rc.RespondError("no_default_agent", err.Error())
		return
	}
	rc.Respond(map[string]any{"agentId": agentID})
}

func (s *Server) rpcRoutingTest(rc *RequestContext) {
	var ctx domain.MatchContext
	if err := rc.Params(&ctx); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	decision, err := s.resolver.TestRouting(ctx)
	if err != nil {
		rc.RespondError("no_default_agent", err.Error())
		return
	}
	rc.Respond(decision)
}

// Spawn governor

type spawnAcquireParams struct {
	ParentTicket string `json:"parentTicket,omitempty"`
	AgentID      string `json:"agentId"`
}

func (s *Server) rpcSpawnAcquire(rc *RequestContext) {
	var p spawnAcquireParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.AgentID == "" {
		rc.RespondError("invalid_params", "agentId is required")
		return
	}

	parentID := uuid.Nil
	if p.ParentTicket != "" {
		var err error
		parentID, err = uuid.Parse(p.ParentTicket)
		if err != nil {
			rc.RespondError("invalid_params", "invalid parentTicket: "+err.Error())
			return
		}
	}

	ticket, err := s.governor.Acquire(parentID, p.AgentID)
	if err != nil {
		respondSpawnError(rc, err)
		return
	}

	rc.Respond(map[string]any{
		"ticket":  ticket.ID.String(),
		"agentId": ticket.AgentID,
		"depth":   ticket.Depth,
	})
}

type spawnReleaseParams struct {
	Ticket  string `json:"ticket"`
	Outcome string `json:"outcome"` // "completed" | "failed"
}

func (s *Server) rpcSpawnRelease(rc *RequestContext) {
	var p spawnReleaseParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	ticketID, err := uuid.Parse(p.Ticket)
	if err != nil {
		rc.RespondError("invalid_params", "invalid ticket: "+err.Error())
		return
	}

	outcome := spawn.Outcome(p.Outcome)
	switch outcome {
	case "":
		outcome = spawn.OutcomeCompleted
	case spawn.OutcomeCompleted, spawn.OutcomeFailed:
	default:
		rc.RespondError("invalid_params", "outcome must be completed or failed")
		return
	}

	if err := s.governor.Release(ticketID, outcome); err != nil {
		respondSpawnError(rc, err)
		return
	}
	rc.Respond(map[string]any{"ticket": p.Ticket})
}

func (s *Server) rpcSpawnStatus(rc *RequestContext) {
	rc.Respond(s.governor.Status())
}

type spawnTreeParams struct {
	Ticket string `json:"ticket,omitempty"`
}

func (s *Server) rpcSpawnTree(rc *RequestContext) {
	var p spawnTreeParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if p.Ticket == "" {
		rc.Respond(map[string]any{"trees": s.governor.Trees()})
		return
	}

	ticketID, err := uuid.Parse(p.Ticket)
	if err != nil {
		rc.RespondError("invalid_params", "invalid ticket: "+err.Error())
		return
	}
	tree, ok := s.governor.Tree(ticketID)
	if !ok {
		rc.RespondError("not_found", "no live node for ticket: "+p.Ticket)
		return
	}
	rc.Respond(tree)
}
