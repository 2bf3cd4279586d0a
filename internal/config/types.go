package config

// Config is the root configuration for Switchboard.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
}

// GatewayConfig controls the management WebSocket server.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty"`
	Bind           string           `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string           `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth      `yaml:"auth,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayControlUI configures the management panel surface.
type GatewayControlUI struct {
	Enabled        bool     `yaml:"enabled,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// StoreConfig selects where agents, bindings and spawn defaults persist.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // "sqlite" | "file" | "memory"
	Path    string `yaml:"path,omitempty"`    // database file or JSON file; empty uses the standard location
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// WatchConfig controls hot reload of the file-backed store.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HooksConfig maps lifecycle events to shell hook actions.
type HooksConfig struct {
	AgentCreated    []HookEntry `yaml:"agentCreated,omitempty"`
	AgentUpdated    []HookEntry `yaml:"agentUpdated,omitempty"`
	AgentDeleted    []HookEntry `yaml:"agentDeleted,omitempty"`
	BindingCreated  []HookEntry `yaml:"bindingCreated,omitempty"`
	BindingDeleted  []HookEntry `yaml:"bindingDeleted,omitempty"`
	DefaultsUpdated []HookEntry `yaml:"defaultsUpdated,omitempty"`
	ConfigReloaded  []HookEntry `yaml:"configReloaded,omitempty"`
	SpawnGranted    []HookEntry `yaml:"spawnGranted,omitempty"`
	SpawnDenied     []HookEntry `yaml:"spawnDenied,omitempty"`
	SpawnReleased   []HookEntry `yaml:"spawnReleased,omitempty"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
