// Package sqlstore implements store.Store on the SQLite repositories.
package sqlstore

import (
	"context"
	"errors"
	"sync"

	"afl-tracker/internal/domain"
	"afl-tracker/internal/repository"
	"afl-tracker/internal/store"

	"github.com/rs/zerolog"
)

type Store struct {
	matches *repository.MatchRepository
	actions *repository.ActionRepository
	logger  zerolog.Logger

	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

var _ store.Store = (*Store)(nil)

func New(matches *repository.MatchRepository, actions *repository.ActionRepository, logger zerolog.Logger) *Store {
	return &Store{
		matches: matches,
		actions: actions,
		logger:  logger,
		subs:    make(map[string]map[chan struct{}]struct{}),
	}
}

func (s *Store) CreateMatch(ctx context.Context, match domain.Match) (*domain.Match, error) {
	if err := s.matches.Create(ctx, &match); err != nil {
		return nil, &domain.StoreWriteError{Op: "create match", Err: err}
	}
	return &match, nil
}

func (s *Store) ListMatches(ctx context.Context, query string, limit int) ([]domain.Match, error) {
	matches, err := s.matches.List(ctx, query, limit)
	if err != nil {
		return nil, readError("list matches", err)
	}
	return matches, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, readError("get match", err)
	}
	return m, nil
}

func (s *Store) QueryActions(ctx context.Context, matchID string, filter store.Filter) ([]domain.ActionRecord, error) {
	records, err := s.actions.Query(ctx, matchID, filter)
	if err != nil {
		return nil, readError("query actions", err)
	}
	return records, nil
}

func (s *Store) AppendAction(ctx context.Context, matchID string, record domain.ActionRecord) (string, error) {
	record.MatchID = matchID
	if err := s.actions.Append(ctx, &record); err != nil {
		return "", &domain.StoreWriteError{Op: "append action", Err: err}
	}
	s.notify(matchID)
	return record.ID, nil
}

// SubscribeActions sends the current filtered list immediately and again
// after every append to the match. Notifications coalesce, so a slow reader
// sees the latest list rather than every intermediate one.
func (s *Store) SubscribeActions(ctx context.Context, matchID string, filter store.Filter) (<-chan []domain.ActionRecord, error) {
	initial, err := s.QueryActions(ctx, matchID, filter)
	if err != nil {
		return nil, err
	}

	wake := make(chan struct{}, 1)
	s.mu.Lock()
	if s.subs[matchID] == nil {
		s.subs[matchID] = make(map[chan struct{}]struct{})
	}
	s.subs[matchID][wake] = struct{}{}
	s.mu.Unlock()

	out := make(chan []domain.ActionRecord, 1)
	out <- initial

	go func() {
		defer close(out)
		defer s.unsubscribe(matchID, wake)

		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}

			records, err := s.QueryActions(ctx, matchID, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to refresh action subscription")
				continue
			}

			select {
			case out <- records:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Debug().Str("match_id", matchID).Msg("action subscription opened")
	return out, nil
}

func (s *Store) notify(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for wake := range s.subs[matchID] {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (s *Store) unsubscribe(matchID string, wake chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[matchID], wake)
	if len(s.subs[matchID]) == 0 {
		delete(s.subs, matchID)
	}
	s.logger.Debug().Str("match_id", matchID).Msg("action subscription closed")
}

func readError(op string, err error) error {
	var rerr *domain.StoreReadError
	if errors.As(err, &rerr) {
		return err
	}
	return &domain.StoreReadError{Op: op, Err: err}
}
