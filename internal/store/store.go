// Package store defines the document-store contract the recording core
// reads matches and actions through.
package store

import (
	"context"

	"afl-tracker/internal/domain"
)

// Filter narrows an action query. Zero values mean "any".
type Filter struct {
	Quarter      string
	Team         string
	PlayerNumber *int
	ActionType   string
	Limit        int
	// Descending orders newest first; results are always ordered by
	// timestamp, then insertion sequence.
	Descending bool
}

// Matches reports whether a record passes the filter, ignoring Limit.
func (f Filter) Matches(r domain.ActionRecord) bool {
	if f.Quarter != "" && r.Quarter != f.Quarter {
		return false
	}
	if f.Team != "" && r.Team != f.Team {
		return false
	}
	if f.PlayerNumber != nil && r.PlayerNumber != *f.PlayerNumber {
		return false
	}
	if f.ActionType != "" && r.ActionType != f.ActionType {
		return false
	}
	return true
}

type Store interface {
	// CreateMatch assigns the match an id and returns the stored copy.
	CreateMatch(ctx context.Context, match domain.Match) (*domain.Match, error)
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	// ListMatches returns matches newest first. A non-empty query keeps
	// matches whose name, venue or team names contain it, ignoring case.
	// A limit of zero means no limit.
	ListMatches(ctx context.Context, query string, limit int) ([]domain.Match, error)
	QueryActions(ctx context.Context, matchID string, filter Filter) ([]domain.ActionRecord, error)
	AppendAction(ctx context.Context, matchID string, record domain.ActionRecord) (string, error)
	// SubscribeActions delivers the full filtered action list on every
	// change. The channel closes when ctx is cancelled.
	SubscribeActions(ctx context.Context, matchID string, filter Filter) (<-chan []domain.ActionRecord, error)
}

// Latest returns the most recent action record for a match.
func Latest(ctx context.Context, s Store, matchID string) (*domain.ActionRecord, error) {
	records, err := s.QueryActions(ctx, matchID, Filter{Limit: 1, Descending: true})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
