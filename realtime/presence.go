package realtime

import "sync"

// PresenceRegistry tracks which users currently hold at least one open
// connection. Purely in-memory; constructed once per process and injected
// wherever online state is needed.
type PresenceRegistry struct {
	mu    sync.RWMutex
	conns map[uint]map[string]struct{}
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns: make(map[uint]map[string]struct{}),
	}
}

func (r *PresenceRegistry) Register(userID uint, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
}

// Unregister removes one connection. The user goes offline only when the
// last connection is gone; unknown keys are a no-op.
func (r *PresenceRegistry) Unregister(userID uint, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

func (r *PresenceRegistry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

func (r *PresenceRegistry) ListOnline() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]uint, 0, len(r.conns))
	for userID := range r.conns {
		online = append(online, userID)
	}
	return online
}

// ConnectionCount reports how many devices the user has connected.
func (r *PresenceRegistry) ConnectionCount(userID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
