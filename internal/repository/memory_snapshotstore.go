package repository

import (
	"context"
	"sync"
)

// MemorySnapshotStore keeps snapshots in process memory. It is used when no
// database is configured and keeps at most perProject snapshots per project.
type MemorySnapshotStore struct {
	mu         sync.RWMutex
	perProject int
	byProject  map[string][]*Snapshot
}

// NewMemorySnapshotStore creates a new MemorySnapshotStore.
func NewMemorySnapshotStore(perProject int) *MemorySnapshotStore {
	if perProject <= 0 {
		perProject = 50
	}
	return &MemorySnapshotStore{
		perProject: perProject,
		byProject:  make(map[string][]*Snapshot),
	}
}

// Save appends a snapshot, evicting the oldest beyond the per-project cap.
func (s *MemorySnapshotStore) Save(ctx context.Context, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.byProject[snapshot.ProjectID], snapshot)
	if len(list) > s.perProject {
		list = list[len(list)-s.perProject:]
	}
	s.byProject[snapshot.ProjectID] = list
	return nil
}

// ListByProject returns the newest snapshots of a project first.
func (s *MemorySnapshotStore) ListByProject(ctx context.Context, projectID string, limit int) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byProject[projectID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]*Snapshot, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemorySnapshotStore) Ping(ctx context.Context) error {
	return nil
}
