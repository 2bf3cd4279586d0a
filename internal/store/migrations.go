package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create agents, bindings and spawn defaults",
		SQL: `
			CREATE TABLE agents (
				id                TEXT PRIMARY KEY,
				name              TEXT NOT NULL DEFAULT '',
				workspace         TEXT NOT NULL DEFAULT '',
				agent_dir         TEXT NOT NULL DEFAULT '',
				model_override    TEXT NOT NULL DEFAULT '',
				sandbox           INTEGER NOT NULL DEFAULT 0,
				heartbeat         TEXT NOT NULL DEFAULT '',
				is_default        INTEGER NOT NULL DEFAULT 0,
				allowed_subagents TEXT,
				position          INTEGER NOT NULL
			);

			CREATE INDEX idx_agents_default ON agents (is_default);

			CREATE TABLE bindings (
				position   INTEGER PRIMARY KEY,
				channel    TEXT NOT NULL DEFAULT '',
				account_id TEXT NOT NULL DEFAULT '',
				peer       TEXT NOT NULL DEFAULT '',
				agent_id   TEXT NOT NULL REFERENCES agents(id)
			);

			CREATE INDEX idx_bindings_agent ON bindings (agent_id);

			CREATE TABLE spawn_defaults (
				id                     INTEGER PRIMARY KEY CHECK (id = 1),
				max_spawn_depth        INTEGER,
				max_children_per_agent INTEGER,
				max_concurrent         INTEGER
			);
		`,
	},
}
