package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind: custom",
		})
	}

	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode),
		})
	}

	if cfg.Gateway.TLS.Enabled {
		if cfg.Gateway.TLS.CertPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls.certPath",
				Message: "required when tls is enabled",
			})
		}
		if cfg.Gateway.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls.keyPath",
				Message: "required when tls is enabled",
			})
		}
	}

	// Store validation
	validBackends := []string{"sqlite", "file", "memory"}
	if cfg.Store.Backend != "" && !slices.Contains(validBackends, cfg.Store.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "store.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.Store.Backend),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleLevel",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Hooks validation
	for path, entries := range map[string][]HookEntry{
		"hooks.agentCreated":    cfg.Hooks.AgentCreated,
		"hooks.agentUpdated":    cfg.Hooks.AgentUpdated,
		"hooks.agentDeleted":    cfg.Hooks.AgentDeleted,
		"hooks.bindingCreated":  cfg.Hooks.BindingCreated,
		"hooks.bindingDeleted":  cfg.Hooks.BindingDeleted,
		"hooks.defaultsUpdated": cfg.Hooks.DefaultsUpdated,
		"hooks.configReloaded":  cfg.Hooks.ConfigReloaded,
		"hooks.spawnGranted":    cfg.Hooks.SpawnGranted,
		"hooks.spawnDenied":     cfg.Hooks.SpawnDenied,
		"hooks.spawnReleased":   cfg.Hooks.SpawnReleased,
		"hooks.gatewayStart":    cfg.Hooks.GatewayStart,
		"hooks.gatewayStop":     cfg.Hooks.GatewayStop,
	} {
		for i, entry := range entries {
			if entry.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s[%d].command", path, i),
					Message: "command is required",
				})
			}
			if entry.Timeout < 0 {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s[%d].timeout", path, i),
					Message: fmt.Sprintf("timeout must be >= 0, got %d", entry.Timeout),
				})
			}
		}
	}

	return issues
}
