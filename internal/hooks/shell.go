package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/soyeahso/switchboard/internal/config"
)

// defaultShellTimeout bounds hook commands that set no explicit timeout.
const defaultShellTimeout = 30 * time.Second

// RegisterShell wires configured shell commands into the manager. Each
// command runs through `sh -c` with the event payload as JSON on stdin and
// the event name in SWITCHBOARD_HOOK_EVENT.
func RegisterShell(m *Manager, cfg config.HooksConfig) {
	for event, entries := range map[string][]config.HookEntry{
		EventAgentCreated:    cfg.AgentCreated,
		EventAgentUpdated:    cfg.AgentUpdated,
		EventAgentDeleted:    cfg.AgentDeleted,
		EventBindingCreated:  cfg.BindingCreated,
		EventBindingDeleted:  cfg.BindingDeleted,
		EventDefaultsUpdated: cfg.DefaultsUpdated,
		EventConfigReloaded:  cfg.ConfigReloaded,
		EventSpawnGranted:    cfg.SpawnGranted,
		EventSpawnDenied:     cfg.SpawnDenied,
		EventSpawnReleased:   cfg.SpawnReleased,
		EventGatewayStart:    cfg.GatewayStart,
		EventGatewayStop:     cfg.GatewayStop,
	} {
		for i, entry := range entries {
			name := fmt.Sprintf("shell[%d]", i)
			m.On(event, name, shellHandler(entry))
		}
	}
}

func shellHandler(entry config.HookEntry) Handler {
	timeout := defaultShellTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(payload)
		cmd.Env = append(cmd.Environ(), "SWITCHBOARD_HOOK_EVENT="+p.Event)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("hook command failed: %w: %s", err, out)
		}
		return nil
	}
}
