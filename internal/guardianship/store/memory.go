package store

import (
	"context"
	"encoding/json"
	"sync"

	"walezi/internal/guardianship/models"
	id "walezi/pkg/domain"
	"walezi/pkg/platform/sentinel"
)

// InMemory is the development and test implementation. Snapshots are stored
// as JSON so reads hand out independent copies, the same isolation the
// Postgres store provides.
type InMemory struct {
	mu        sync.RWMutex
	snapshots map[id.GuardianshipID][]byte
	versions  map[id.GuardianshipID]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		snapshots: make(map[id.GuardianshipID][]byte),
		versions:  make(map[id.GuardianshipID]int64),
	}
}

func (s *InMemory) Save(_ context.Context, g *models.Guardianship, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.versions[g.ID]
	if !exists && expectedVersion != 0 {
		return sentinel.ErrNotFound
	}
	if exists && current != expectedVersion {
		return &VersionConflictError{GuardianshipID: g.ID, Expected: expectedVersion, Actual: current}
	}

	snapshot, err := json.Marshal(g)
	if err != nil {
		return err
	}
	s.snapshots[g.ID] = snapshot
	s.versions[g.ID] = g.Version
	return nil
}

func (s *InMemory) FindByID(_ context.Context, guardianshipID id.GuardianshipID) (*models.Guardianship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[guardianshipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var g models.Guardianship
	if err := json.Unmarshal(snapshot, &g); err != nil {
		return nil, sentinel.ErrInvalidState
	}
	return &g, nil
}

func (s *InMemory) ListActive(_ context.Context) ([]*models.Guardianship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.Guardianship
	for _, snapshot := range s.snapshots {
		var g models.Guardianship
		if err := json.Unmarshal(snapshot, &g); err != nil {
			return nil, sentinel.ErrInvalidState
		}
		if g.IsActive {
			active = append(active, &g)
		}
	}
	return active, nil
}

// Clear resets the store between tests.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[id.GuardianshipID][]byte)
	s.versions = make(map[id.GuardianshipID]int64)
}
