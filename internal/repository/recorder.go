package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/pipeline"
)

// Recorder returns a commit hook that appends every committed State to store.
// Save failures are logged and otherwise ignored.
func Recorder(store SnapshotStore, logger *logging.Logger) pipeline.CommitFunc {
	log := logger.With("component", "snapshots")
	return func(ctx context.Context, state pipeline.State) {
		snapshot := NewSnapshot(uuid.NewString(), state, time.Now())
		if err := store.Save(context.WithoutCancel(ctx), snapshot); err != nil {
			log.Error("failed to save snapshot", "project_id", state.ProjectID, "error", err)
		}
	}
}
