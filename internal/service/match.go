package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"afl-tracker/internal/constants"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/repository"
	"afl-tracker/internal/store"

	"github.com/rs/zerolog"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// MatchService manages the match catalogue and team rosters. The catalogue
// lives in the configured store, so matches created by the app are visible
// here and matches created here can be recorded by the app.
type MatchService struct {
	store      store.Store
	playerRepo *repository.PlayerRepository
	logger     zerolog.Logger
}

func NewMatchService(st store.Store, playerRepo *repository.PlayerRepository, logger zerolog.Logger) *MatchService {
	return &MatchService{store: st, playerRepo: playerRepo, logger: logger}
}

func (s *MatchService) CreateMatch(ctx context.Context, m domain.Match) (*domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	m.Name = strings.TrimSpace(m.Name)
	m.Venue = strings.TrimSpace(m.Venue)
	m.Team1Name = strings.TrimSpace(m.Team1Name)
	m.Team2Name = strings.TrimSpace(m.Team2Name)
	if err := validateMatch(&m); err != nil {
		return nil, err
	}

	m.ID = ""
	created, err := s.store.CreateMatch(ctx, m)
	if err != nil {
		s.logger.Error().Err(err).Str("name", m.Name).Msg("failed to create match")
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	s.logger.Info().
		Str("match_id", created.ID).
		Str("name", created.Name).
		Str("team1", created.Team1Name).
		Str("team2", created.Team2Name).
		Msg("match created")
	return created, nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StoreReadTimeout)
	defer cancel()

	return s.store.GetMatch(ctx, matchID)
}

// ListMatches returns matches newest first, optionally filtered by a
// case-insensitive search on name, venue and team names.
func (s *MatchService) ListMatches(ctx context.Context, query string) ([]domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StoreReadTimeout)
	defer cancel()

	matches, err := s.store.ListMatches(ctx, query, constants.MatchSearchLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("failed to list matches")
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	s.logger.Debug().Str("query", query).Int("count", len(matches)).Msg("listed matches")
	return matches, nil
}

func validateMatch(m *domain.Match) error {
	switch {
	case m.Name == "":
		return fmt.Errorf("match name is required: %w", domain.ErrInvalidInput)
	case m.Team1Name == "" || m.Team2Name == "":
		return fmt.Errorf("both team names are required: %w", domain.ErrInvalidInput)
	case strings.EqualFold(m.Team1Name, m.Team2Name):
		return fmt.Errorf("team names must differ: %w", domain.ErrInvalidInput)
	}
	for _, c := range []string{m.Team1Color, m.Team2Color} {
		if c != "" && !colorPattern.MatchString(c) {
			return fmt.Errorf("team color %q is not #RRGGBB: %w", c, domain.ErrInvalidInput)
		}
	}
	return nil
}
