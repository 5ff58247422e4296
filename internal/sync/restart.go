package sync

import (
	"fmt"
	"sync"

	"github.com/pesit-e/pesitengine/internal/params"
)

// RestartStore persists the last committed sync point per transfer so
// a PI_18 restart request can be honored after a process restart.
// Implementations must be safe for concurrent use.
type RestartStore interface {
	Save(transferID string, point params.RestartPoint) error
	Load(transferID string) (params.RestartPoint, bool, error)
	Delete(transferID string) error
}

// MemoryRestartStore is the always-available RestartStore: an
// in-process map guarded by a mutex. Its points outlive a session
// but not the process: they are lost when the process exits.
type MemoryRestartStore struct {
	mu     sync.RWMutex
	points map[string]params.RestartPoint
}

func NewMemoryRestartStore() *MemoryRestartStore {
	return &MemoryRestartStore{points: make(map[string]params.RestartPoint)}
}

func (s *MemoryRestartStore) Save(transferID string, point params.RestartPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[transferID] = point
	return nil
}

func (s *MemoryRestartStore) Load(transferID string) (params.RestartPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[transferID]
	return p, ok, nil
}

func (s *MemoryRestartStore) Delete(transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.points, transferID)
	return nil
}

var _ RestartStore = (*MemoryRestartStore)(nil)

// restartKeyPrefix namespaces restart points within a shared Badger
// database that may also hold other engine state.
const restartKeyPrefix = "restart/"

func restartKey(transferID string) []byte {
	return []byte(fmt.Sprintf("%s%s", restartKeyPrefix, transferID))
}
