package engine

import (
	"sync"

	"github.com/datallboy/goytbot/internal/domain"
)

// SessionGate allows one run at a time per conversation.
type SessionGate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewSessionGate() *SessionGate {
	return &SessionGate{busy: make(map[string]struct{})}
}

// Acquire claims key. The returned release must be called exactly once.
func (g *SessionGate) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.busy[key]; ok {
		return nil, domain.ErrSessionBusy
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, nil
}

func (g *SessionGate) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}
