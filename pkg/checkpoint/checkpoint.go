// Package checkpoint persists orchestrator run state (plan snapshots and
// work history) to a local SQLite database, so a crashed or interrupted
// run can be inspected or resumed.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite database holding run checkpoints.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	phase TEXT NOT NULL,
	plan_json TEXT NOT NULL,
	context_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (run_id, iteration)
);
`

// Open creates/opens the SQLite database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one checkpoint row for runID at the given iteration. plan
// and context are marshaled to JSON as opaque snapshots — this package
// does not depend on pkg/task or pkg/orchestrator to avoid an import
// cycle, so callers pass already-marshalable values.
func (s *Store) Save(runID string, iteration int, phase string, plan, context any) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal plan: %w", err)
	}
	contextJSON, err := json.Marshal(context)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal context: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO checkpoints (run_id, iteration, phase, plan_json, context_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, iteration, phase, string(planJSON), string(contextJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: insert: %w", err)
	}
	return nil
}

// Snapshot is one persisted checkpoint row.
type Snapshot struct {
	RunID       string
	Iteration   int
	Phase       string
	PlanJSON    string
	ContextJSON string
	CreatedAt   string
}

// Latest returns the most recent checkpoint for runID, or (Snapshot{},
// false, nil) if none exists.
func (s *Store) Latest(runID string) (Snapshot, bool, error) {
	row := s.db.QueryRow(
		`SELECT run_id, iteration, phase, plan_json, context_json, created_at
		 FROM checkpoints WHERE run_id = ? ORDER BY iteration DESC LIMIT 1`,
		runID,
	)
	var snap Snapshot
	err := row.Scan(&snap.RunID, &snap.Iteration, &snap.Phase, &snap.PlanJSON, &snap.ContextJSON, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("checkpoint: query latest: %w", err)
	}
	return snap, true, nil
}

// ListRuns returns the distinct run IDs with at least one checkpoint,
// most recently active first.
func (s *Store) ListRuns() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT run_id FROM checkpoints GROUP BY run_id ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("checkpoint: scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
