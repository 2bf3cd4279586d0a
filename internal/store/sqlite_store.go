package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/soyeahso/switchboard/internal/domain"
)

// SQLiteStore implements ConfigStore backed by SQLite. Save rewrites the
// whole snapshot inside one transaction, so a failed write leaves the
// previous snapshot intact.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a config store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads the full configuration snapshot.
func (s *SQLiteStore) Load() (State, error) {
	var state State

	rows, err := s.db.sql.Query(
		`SELECT id, name, workspace, agent_dir, model_override, sandbox, heartbeat, is_default, allowed_subagents
		 FROM agents ORDER BY position`,
	)
	if err != nil {
		return State{}, fmt.Errorf("loading agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Agent
		var sandbox, isDefault int
		var allowed sql.NullString
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Workspace, &a.AgentDir, &a.ModelOverride,
			&sandbox, &a.Heartbeat, &isDefault, &allowed,
		); err != nil {
			return State{}, fmt.Errorf("scanning agent: %w", err)
		}
		a.Sandbox = sandbox != 0
		a.IsDefault = isDefault != 0
		if allowed.Valid {
			var ids []string
			if err := json.Unmarshal([]byte(allowed.String), &ids); err != nil {
				return State{}, fmt.Errorf("decoding allow list for %s: %w", a.ID, err)
			}
			a.AllowedSubagents = &ids
		}
		state.Agents = append(state.Agents, a)
	}
	if err := rows.Err(); err != nil {
		return State{}, fmt.Errorf("loading agents: %w", err)
	}

	bindRows, err := s.db.sql.Query(
		`SELECT channel, account_id, peer, agent_id FROM bindings ORDER BY position`,
	)
	if err != nil {
		return State{}, fmt.Errorf("loading bindings: %w", err)
	}
	defer bindRows.Close()

	for bindRows.Next() {
		var b domain.Binding
		if err := bindRows.Scan(&b.Match.Channel, &b.Match.AccountID, &b.Match.Peer, &b.AgentID); err != nil {
			return State{}, fmt.Errorf("scanning binding: %w", err)
		}
		state.Bindings = append(state.Bindings, b)
	}
	if err := bindRows.Err(); err != nil {
		return State{}, fmt.Errorf("loading bindings: %w", err)
	}

	var depth, children, concurrent sql.NullInt64
	err = s.db.sql.QueryRow(
		`SELECT max_spawn_depth, max_children_per_agent, max_concurrent FROM spawn_defaults WHERE id = 1`,
	).Scan(&depth, &children, &concurrent)
	if err != nil && err != sql.ErrNoRows {
		return State{}, fmt.Errorf("loading spawn defaults: %w", err)
	}
	state.Defaults = domain.SubagentDefaults{
		MaxSpawnDepth:       nullableInt(depth),
		MaxChildrenPerAgent: nullableInt(children),
		MaxConcurrent:       nullableInt(concurrent),
	}

	return state, nil
}

// Save replaces the persisted snapshot. All-or-nothing: any failure rolls
// the transaction back.
func (s *SQLiteStore) Save(state State) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	// Bindings reference agents, so they go first on delete, last on insert.
	if _, err := tx.Exec(`DELETE FROM bindings`); err != nil {
		return fmt.Errorf("clearing bindings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM agents`); err != nil {
		return fmt.Errorf("clearing agents: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM spawn_defaults`); err != nil {
		return fmt.Errorf("clearing spawn defaults: %w", err)
	}

	for i, a := range state.Agents {
		var allowed sql.NullString
		if a.AllowedSubagents != nil {
			data, err := json.Marshal(*a.AllowedSubagents)
			if err != nil {
				return fmt.Errorf("encoding allow list for %s: %w", a.ID, err)
			}
			allowed = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO agents (id, name, workspace, agent_dir, model_override, sandbox, heartbeat, is_default, allowed_subagents, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Workspace, a.AgentDir, a.ModelOverride,
			boolInt(a.Sandbox), a.Heartbeat, boolInt(a.IsDefault), allowed, i,
		); err != nil {
			return fmt.Errorf("saving agent %s: %w", a.ID, err)
		}
	}

	for i, b := range state.Bindings {
		if _, err := tx.Exec(
			`INSERT INTO bindings (position, channel, account_id, peer, agent_id) VALUES (?, ?, ?, ?, ?)`,
			i, b.Match.Channel, b.Match.AccountID, b.Match.Peer, b.AgentID,
		); err != nil {
			return fmt.Errorf("saving binding %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO spawn_defaults (id, max_spawn_depth, max_children_per_agent, max_concurrent) VALUES (1, ?, ?, ?)`,
		intNullable(state.Defaults.MaxSpawnDepth),
		intNullable(state.Defaults.MaxChildrenPerAgent),
		intNullable(state.Defaults.MaxConcurrent),
	); err != nil {
		return fmt.Errorf("saving spawn defaults: %w", err)
	}

	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func intNullable(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
