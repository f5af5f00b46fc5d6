package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"afl-tracker/internal/config"
	"afl-tracker/internal/constants"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/session"
	"afl-tracker/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type sessionKey struct {
	matchID string
	quarter domain.Quarter
}

func (k sessionKey) String() string {
	return fmt.Sprintf("%s/%d", k.matchID, k.quarter)
}

// SessionService keeps one live session per match quarter and closes those
// left idle with a stopped or paused clock.
type SessionService struct {
	store     store.Store
	clk       clockwork.Clock
	idleTTL   time.Duration
	scheduler gocron.Scheduler
	opening   singleflight.Group
	logger    zerolog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session.Session
	stopped  bool
}

func NewSessionService(cfg *config.Config, st store.Store, clk clockwork.Clock, logger zerolog.Logger) (*SessionService, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clk))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &SessionService{
		store:     st,
		clk:       clk,
		idleTTL:   cfg.SessionIdleTTL,
		scheduler: scheduler,
		logger:    logger,
		sessions:  make(map[sessionKey]*session.Session),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(constants.SessionReapInterval),
		gocron.NewTask(s.ReapIdle),
		gocron.WithName("reap-idle-sessions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule session reaper: %w", err)
	}
	return s, nil
}

func (s *SessionService) Start() {
	s.scheduler.Start()
	s.logger.Info().Dur("idle_ttl", s.idleTTL).Msg("session reaper started")
}

// Shutdown stops the reaper and closes every open session.
func (s *SessionService) Shutdown() error {
	err := s.scheduler.Shutdown()

	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[sessionKey]*session.Session)
	s.stopped = true
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}
	s.logger.Info().Int("closed", len(open)).Msg("sessions shut down")
	return err
}

// Open returns the live session for a match quarter, creating it on first
// use. Concurrent opens of one quarter share a single load, and the load
// holds no lock, so other quarters stay usable while it reads the store.
func (s *SessionService) Open(ctx context.Context, matchID string, q domain.Quarter) (*session.Session, error) {
	key := sessionKey{matchID, q}
	if sess, ok := s.lookup(key); ok {
		return sess, nil
	}

	ch := s.opening.DoChan(key.String(), func() (any, error) {
		if sess, ok := s.lookup(key); ok {
			return sess, nil
		}

		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RequestTimeout)
		defer cancel()

		sess, err := session.Open(openCtx, s.store, matchID, q, s.clk, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID).Str("quarter", q.String()).Msg("failed to open session")
			return nil, err
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			sess.Close()
			return nil, session.ErrClosed
		}
		s.sessions[key] = sess
		s.mu.Unlock()
		return sess, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*session.Session), nil
	}
}

func (s *SessionService) lookup(key sessionKey) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Get returns an already open session.
func (s *SessionService) Get(matchID string, q domain.Quarter) (*session.Session, error) {
	sess, ok := s.lookup(sessionKey{matchID, q})
	if !ok {
		return nil, fmt.Errorf("no open session for %s %s: %w", matchID, q, domain.ErrNotFound)
	}
	return sess, nil
}

func (s *SessionService) Close(matchID string, q domain.Quarter) error {
	key := sessionKey{matchID, q}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no open session for %s %s: %w", matchID, q, domain.ErrNotFound)
	}
	sess.Close()
	return nil
}

// ReapIdle closes sessions whose clock is not running and that nobody has
// touched for the idle TTL.
func (s *SessionService) ReapIdle() {
	now := s.clk.Now()

	s.mu.Lock()
	var idle []*session.Session
	for key, sess := range s.sessions {
		if sess.Running() || now.Sub(sess.IdleSince()) < s.idleTTL {
			continue
		}
		idle = append(idle, sess)
		delete(s.sessions, key)
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.logger.Info().
			Str("match_id", sess.MatchID()).
			Str("quarter", sess.Quarter().String()).
			Time("idle_since", sess.IdleSince()).
			Msg("closing idle session")
		sess.Close()
	}
}

func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
