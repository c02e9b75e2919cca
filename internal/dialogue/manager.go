package dialogue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/metrics"
)

// Manager owns the live sessions of this process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewManager(idleTTL time.Duration, log logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   log.With(map[string]interface{}{"component": "session-manager"}),
	}
}

func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	m.logger.Info("session created", map[string]interface{}{"sessionId": s.ID})
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	return s, nil
}

func (m *Manager) End(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return apperrors.NewSessionNotFoundError(id)
	}
	metrics.ActiveSessions.Set(float64(n))
	m.logger.Info("session ended", map[string]interface{}{"sessionId": id})
	return nil
}

// List returns the sessions oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Reap removes sessions idle for longer than the TTL. Sessions with a turn in
// flight are kept. It returns the number of removed sessions.
func (m *Manager) Reap() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var removed []string
	for id, s := range m.sessions {
		if !s.Processing() && s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			removed = append(removed, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	if len(removed) > 0 {
		m.logger.Info("idle sessions reaped", map[string]interface{}{
			"count":     len(removed),
			"remaining": n,
		})
	}
	return len(removed)
}

// Run reaps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}
