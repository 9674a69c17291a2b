// Package session keeps one Orchestrator per browser session in memory.
// Idle sessions are evicted after a TTL; a session with a run in flight is
// never evicted.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipepmaragno/velvet-protocol/internal/credits"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/orchestrator"
)

type Session struct {
	ID           string
	Orchestrator *orchestrator.Orchestrator
	CreatedAt    time.Time

	lastSeen time.Time
}

type Config struct {
	InitialCredits int
	TTL            time.Duration
}

type Store struct {
	analyzer  orchestrator.Analyzer
	generator orchestrator.Generator
	cfg       Config
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(analyzer orchestrator.Analyzer, generator orchestrator.Generator, cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &Store{
		analyzer:  analyzer,
		generator: generator,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

func (s *Store) Create() *Session {
	id := uuid.NewString()
	now := s.now()

	sess := &Session{
		ID: id,
		Orchestrator: orchestrator.New(
			s.analyzer,
			s.generator,
			credits.NewLedger(s.cfg.InitialCredits),
			orchestrator.WithSessionID(id),
		),
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(n)
	return sess
}

// Get returns the session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	metrics.SetActiveSessions(n)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions unused for longer than the TTL and returns how
// many were dropped.
func (s *Store) EvictIdle() int {
	now := s.now()

	s.mu.Lock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) < s.cfg.TTL {
			continue
		}
		if sess.Orchestrator.State().InFlight {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(n)
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				logger.Debug().Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}
