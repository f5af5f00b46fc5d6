package service

import (
	"context"
	"fmt"
	"strings"

	"afl-tracker/internal/constants"
	"afl-tracker/internal/domain"
)

func (s *MatchService) AddPlayer(ctx context.Context, p domain.Player) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if err := s.checkPlayer(ctx, &p); err != nil {
		return nil, err
	}

	p.ID = ""
	if err := s.playerRepo.Create(ctx, &p); err != nil {
		s.logger.Warn().Err(err).Str("match_id", p.MatchID).Str("team", p.TeamName).Int("number", p.Number).Msg("failed to add player")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", p.MatchID).
		Str("player_id", p.ID).
		Str("team", p.TeamName).
		Int("number", p.Number).
		Msg("player added")
	return &p, nil
}

// UpdatePlayer rewrites a rostered player's details. Moving the player to
// the other team is allowed; recorded actions keep the name and number they
// were recorded with.
func (s *MatchService) UpdatePlayer(ctx context.Context, p domain.Player) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if err := s.checkPlayer(ctx, &p); err != nil {
		return nil, err
	}
	existing, err := s.playerRepo.Get(ctx, p.MatchID, p.ID)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = existing.CreatedAt

	if err := s.playerRepo.Update(ctx, &p); err != nil {
		s.logger.Warn().Err(err).Str("match_id", p.MatchID).Str("player_id", p.ID).Msg("failed to update player")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", p.MatchID).
		Str("player_id", p.ID).
		Str("from_team", existing.TeamName).
		Str("team", p.TeamName).
		Int("number", p.Number).
		Msg("player updated")
	return &p, nil
}

func (s *MatchService) RemovePlayer(ctx context.Context, matchID, playerID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.playerRepo.Delete(ctx, matchID, playerID); err != nil {
		return err
	}
	s.logger.Info().Str("match_id", matchID).Str("player_id", playerID).Msg("player removed")
	return nil
}

// ListRoster returns the match's players ordered by team and number. An
// empty team lists both.
func (s *MatchService) ListRoster(ctx context.Context, matchID, team string) ([]domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if team != "" && !match.HasTeam(team) {
		return nil, fmt.Errorf("team %q is not playing in %s: %w", team, match.Name, domain.ErrUnknownTeam)
	}

	players, err := s.playerRepo.ListByMatch(ctx, matchID, team)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	return players, nil
}

func (s *MatchService) GetPlayer(ctx context.Context, matchID, playerID string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.playerRepo.Get(ctx, matchID, playerID)
}

// checkPlayer normalises and validates p, then confirms its team plays in
// the match.
func (s *MatchService) checkPlayer(ctx context.Context, p *domain.Player) error {
	p.Name = strings.TrimSpace(p.Name)
	p.TeamName = strings.TrimSpace(p.TeamName)
	if p.Name == "" {
		return fmt.Errorf("player name is required: %w", domain.ErrInvalidInput)
	}
	if p.Number < 1 || p.Number > constants.MaxPlayerNumber {
		return fmt.Errorf("player number %d out of range 1-%d: %w", p.Number, constants.MaxPlayerNumber, domain.ErrInvalidInput)
	}
	if p.Age < 0 || p.Height < 0 {
		return fmt.Errorf("age and height cannot be negative: %w", domain.ErrInvalidInput)
	}

	match, err := s.store.GetMatch(ctx, p.MatchID)
	if err != nil {
		return err
	}
	if !match.HasTeam(p.TeamName) {
		return fmt.Errorf("team %q is not playing in %s: %w", p.TeamName, match.Name, domain.ErrUnknownTeam)
	}
	return nil
}
