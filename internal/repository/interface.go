package repository

import (
	"context"
	"time"

	"pomflow/backend/internal/pipeline"
)

// Snapshot is one committed pipeline evaluation.
type Snapshot struct {
	ID          string                                    `json:"id"`
	ProjectID   string                                    `json:"project_id"`
	Section     string                                    `json:"section"`
	ActiveStage pipeline.Stage                            `json:"active_stage"`
	Stages      [pipeline.StageCount]pipeline.StageResult `json:"stages"`
	EvaluatedAt time.Time                                 `json:"evaluated_at"`
}

// NewSnapshot wraps a committed State.
func NewSnapshot(id string, state pipeline.State, at time.Time) *Snapshot {
	return &Snapshot{
		ID:          id,
		ProjectID:   state.ProjectID,
		Section:     state.Section,
		ActiveStage: state.ActiveStage,
		Stages:      state.Stages,
		EvaluatedAt: at.UTC(),
	}
}

// State returns the pipeline state the snapshot recorded.
func (s *Snapshot) State() pipeline.State {
	return pipeline.State{
		ProjectID:   s.ProjectID,
		Section:     s.Section,
		ActiveStage: s.ActiveStage,
		Stages:      s.Stages,
	}
}

// SnapshotStore is an interface for storing and retrieving snapshots.
type SnapshotStore interface {
	// Save appends a snapshot.
	Save(ctx context.Context, snapshot *Snapshot) error
	// ListByProject returns the newest snapshots of a project first, at most limit.
	ListByProject(ctx context.Context, projectID string, limit int) ([]*Snapshot, error)
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
