package wizard

import (
	"context"
	"sync"
	"time"

	"resumewizard/internal/errors"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultSessionTTL is how long an idle session is kept
const DefaultSessionTTL = 2 * time.Hour

var (
	ErrSessionNotFound = errors.NewStateError(errors.ErrCodeSessionNotFound, "wizard session not found", nil)
	ErrForbidden       = errors.NewAuthError(errors.ErrCodeForbidden, "wizard session belongs to another user", nil)
)

// Store keeps wizard sessions in memory and evicts idle ones on a schedule
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	opts   Options
	ttl    time.Duration
	logger *errors.Logger
	now    func() time.Time

	cron    *cron.Cron
	evicted int
}

// NewStore creates an empty store
func NewStore(opts Options, ttl time.Duration, logger *errors.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a session for owner. An empty owner marks an anonymous session.
func (s *Store) Create(owner string) *Session {
	session := NewSession(uuid.NewString(), owner, s.opts)

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Debug("Wizard session created", "session_id", session.ID(), "owner", owner)
	return session
}

// Get returns the session if owner may use it
func (s *Store) Get(id, owner string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Owner() != owner {
		return nil, ErrForbidden
	}
	return session, nil
}

// Delete removes a session owned by owner
func (s *Store) Delete(id, owner string) error {
	if _, err := s.Get(id, owner); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Sweep removes sessions idle for longer than the TTL. Sessions with work
// in flight are kept.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.Busy() || session.LastActivity().After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	s.evicted += removed

	if removed > 0 {
		s.logger.Info("Evicted idle wizard sessions", "count", removed, "remaining", len(s.sessions))
	}
	return removed
}

// StartSweeper schedules Sweep with a cron expression or descriptor such
// as "@every 5m"
func (s *Store) StartSweeper(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid session sweep schedule", err).
			WithContext("schedule", schedule)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	s.logger.Info("Wizard session sweeper started", "schedule", schedule, "ttl", s.ttl)
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish
func (s *Store) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats reports store counters for the ops endpoint
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	busy, editing := 0, 0
	for _, session := range s.sessions {
		if session.Busy() {
			busy++
		}
		if session.EditMode() {
			editing++
		}
	}
	return map[string]any{
		"active":      len(s.sessions),
		"busy":        busy,
		"edit_mode":   editing,
		"evicted":     s.evicted,
		"ttl_seconds": s.ttl.Seconds(),
		"sweeper":     s.cron != nil,
	}
}
