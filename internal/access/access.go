package access

import (
	"context"
	"slices"
	"sync"

	"github.com/datallboy/goytbot/internal/infra/logger"
)

// Backend stores the non-owner members.
type Backend interface {
	Add(ctx context.Context, userID int64) (bool, error)
	Remove(ctx context.Context, userID int64) (bool, error)
	Has(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context) ([]int64, error)
}

// List is the set of users allowed to run downloads. The owner is always a
// member and can never be removed.
type List struct {
	owner   int64
	backend Backend
	log     *logger.Logger
}

func New(owner int64, backend Backend, log *logger.Logger) *List {
	return &List{owner: owner, backend: backend, log: log.With("access")}
}

// Seed adds ids that are not yet members. It is safe to call on every start.
func (l *List) Seed(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := l.Add(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) IsOwner(userID int64) bool {
	return userID == l.owner
}

// Allowed reports membership. Backend errors deny access.
func (l *List) Allowed(ctx context.Context, userID int64) bool {
	if l.IsOwner(userID) {
		return true
	}
	ok, err := l.backend.Has(ctx, userID)
	if err != nil {
		l.log.Error("membership lookup for %d failed: %v", userID, err)
		return false
	}
	return ok
}

// Add reports false when userID was already a member.
func (l *List) Add(ctx context.Context, userID int64) (bool, error) {
	if l.IsOwner(userID) {
		return false, nil
	}
	added, err := l.backend.Add(ctx, userID)
	if err == nil && added {
		l.log.Info("added %d", userID)
	}
	return added, err
}

// Remove reports false when userID is the owner or was not a member.
func (l *List) Remove(ctx context.Context, userID int64) (bool, error) {
	if l.IsOwner(userID) {
		return false, nil
	}
	removed, err := l.backend.Remove(ctx, userID)
	if err == nil && removed {
		l.log.Info("removed %d", userID)
	}
	return removed, err
}

// Members returns the owner followed by the other members in ascending order.
func (l *List) Members(ctx context.Context) ([]int64, error) {
	ids, err := l.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	ids = slices.DeleteFunc(ids, func(id int64) bool { return id == l.owner })
	return append([]int64{l.owner}, ids...), nil
}

// MemoryBackend keeps members for the lifetime of the process.
type MemoryBackend struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{ids: make(map[int64]struct{})}
}

func (m *MemoryBackend) Add(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[userID]; ok {
		return false, nil
	}
	m.ids[userID] = struct{}{}
	return true, nil
}

func (m *MemoryBackend) Remove(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[userID]; !ok {
		return false, nil
	}
	delete(m.ids, userID)
	return true, nil
}

func (m *MemoryBackend) Has(_ context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[userID]
	return ok, nil
}

func (m *MemoryBackend) List(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		ids = append(ids, id)
	}
	return ids, nil
}
