package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const snapshotSchema = `CREATE TABLE IF NOT EXISTS pipeline_snapshots (
	id UUID PRIMARY KEY,
	project_id TEXT NOT NULL,
	section TEXT NOT NULL,
	active_stage TEXT NOT NULL,
	stages JSONB NOT NULL,
	evaluated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pipeline_snapshots_project_idx ON pipeline_snapshots (project_id, evaluated_at DESC);`

// PostgresSnapshotStore is a PostgreSQL implementation of the SnapshotStore interface.
type PostgresSnapshotStore struct {
	db *pgxpool.Pool
}

// NewPostgresSnapshotStore creates a new PostgresSnapshotStore.
func NewPostgresSnapshotStore(db *pgxpool.Pool) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *PostgresSnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return nil
}

// Save saves a snapshot to the store.
func (s *PostgresSnapshotStore) Save(ctx context.Context, snapshot *Snapshot) error {
	stages, err := json.Marshal(snapshot.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO pipeline_snapshots (id, project_id, section, active_stage, stages, evaluated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		snapshot.ID, snapshot.ProjectID, snapshot.Section, snapshot.ActiveStage.String(), stages, snapshot.EvaluatedAt)
	return err
}

// ListByProject returns the newest snapshots of a project first.
func (s *PostgresSnapshotStore) ListByProject(ctx context.Context, projectID string, limit int) ([]*Snapshot, error) {
	// LIMIT NULL means no limit.
	var rowLimit any
	if limit > 0 {
		rowLimit = limit
	}
	rows, err := s.db.Query(ctx,
		"SELECT id, project_id, section, active_stage, stages, evaluated_at FROM pipeline_snapshots WHERE project_id = $1 ORDER BY evaluated_at DESC LIMIT $2",
		projectID, rowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		var snapshot Snapshot
		var activeStage string
		var stages []byte
		if err := rows.Scan(&snapshot.ID, &snapshot.ProjectID, &snapshot.Section, &activeStage, &stages, &snapshot.EvaluatedAt); err != nil {
			return nil, err
		}
		if err := snapshot.ActiveStage.UnmarshalText([]byte(activeStage)); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stages, &snapshot.Stages); err != nil {
			return nil, fmt.Errorf("failed to decode stages of snapshot %s: %w", snapshot.ID, err)
		}
		snapshot.EvaluatedAt = snapshot.EvaluatedAt.UTC()
		snapshots = append(snapshots, &snapshot)
	}

	return snapshots, rows.Err()
}

// Ping checks the database connection.
func (s *PostgresSnapshotStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
