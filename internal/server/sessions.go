package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/review"
)

type sessionEntry struct {
	session  *review.Session
	lastSeen time.Time
}

// Manager keeps the review sessions of the API in memory. Sessions idle for
// longer than the TTL are discarded; when full, the least recently used one
// is evicted.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	max      int
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewManager creates a Manager. max <= 0 disables the size cap.
func NewManager(ttl time.Duration, max int) *Manager {
	return &Manager{
		ttl:      ttl,
		max:      max,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Put registers s.
func (m *Manager) Put(s *review.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.evictOldestLocked()
	}
	m.sessions[s.ID] = &sessionEntry{session: s, lastSeen: m.now()}
}

// Get returns the session with id and refreshes its idle timer.
func (m *Manager) Get(id string) (*review.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.expiredLocked(e) {
		m.dropLocked(id, "expired")
		return nil, false
	}
	e.lastSeen = m.now()
	return e.session, true
}

// Remove forgets the session with id without closing it.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Delete discards the session with id. It reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.dropLocked(id, "deleted")
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep discards expired sessions and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				zap.L().Debug("server: expired sessions swept", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) expiredLocked(e *sessionEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.lastSeen) > m.ttl
}

func (m *Manager) sweepLocked() int {
	n := 0
	for id, e := range m.sessions {
		if m.expiredLocked(e) {
			m.dropLocked(id, "expired")
			n++
		}
	}
	return n
}

func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range m.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	if oldestID != "" {
		m.dropLocked(oldestID, "evicted")
	}
}

func (m *Manager) dropLocked(id, reason string) {
	if e, ok := m.sessions[id]; ok {
		e.session.Close()
		delete(m.sessions, id)
		zap.L().Info("server: session dropped", zap.String("session", id), zap.String("reason", reason))
	}
}
