package service

import (
	"context"
	"fmt"
	"strings"

	"afl-tracker/internal/constants"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/ledger"
	"afl-tracker/internal/repository"
	"afl-tracker/internal/store"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// PlayerKey identifies a player within a match the way recorded actions do.
type PlayerKey struct {
	Team   string
	Number int
}

type Export struct {
	Filename string `json:"filename"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
}

type StatsService struct {
	store      store.Store
	playerRepo *repository.PlayerRepository
	lookups    singleflight.Group
	logger     zerolog.Logger
}

func NewStatsService(st store.Store, playerRepo *repository.PlayerRepository, logger zerolog.Logger) *StatsService {
	return &StatsService{store: st, playerRepo: playerRepo, logger: logger}
}

// match dedupes concurrent lookups of the same match, which scoreboards
// polled by several viewers tend to produce. The shared read is detached
// from every caller, so one caller giving up does not fail the others.
func (s *StatsService) match(ctx context.Context, matchID string) (*domain.Match, error) {
	ch := s.lookups.DoChan(matchID, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.StoreReadTimeout)
		defer cancel()
		return s.store.GetMatch(readCtx, matchID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug().Str("match_id", matchID).Msg("shared match lookup")
		}
		return res.Val.(*domain.Match), nil
	}
}

func (s *StatsService) actions(ctx context.Context, matchID string, filter store.Filter) ([]domain.MatchAction, error) {
	records, err := s.store.QueryActions(ctx, matchID, filter)
	if err != nil {
		return nil, err
	}
	actions, skipped := ledger.Decode(records)
	for _, err := range skipped {
		s.logger.Warn().Err(err).Str("match_id", matchID).Msg("skipping malformed action record")
	}
	return actions, nil
}

func (s *StatsService) Scoreboard(ctx context.Context, matchID string) (*ledger.Scoreboard, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	var (
		match   *domain.Match
		actions []domain.MatchAction
	)

	g.Go(func() error {
		var err error
		match, err = s.match(gCtx, matchID)
		return err
	})

	g.Go(func() error {
		var err error
		actions, err = s.actions(gCtx, matchID, store.Filter{})
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("failed to load scoreboard")
		return nil, err
	}

	sb := ledger.BuildScoreboard(match, actions)
	s.logger.Debug().
		Str("match_id", matchID).
		Str("home", sb.Home.Total.String()).
		Str("away", sb.Away.Total.String()).
		Msg("scoreboard built")
	return &sb, nil
}

func (s *StatsService) PlayerStats(ctx context.Context, matchID string) ([]ledger.PlayerStat, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	var (
		actions []domain.MatchAction
		roster  []domain.Player
	)

	g.Go(func() error {
		_, err := s.match(gCtx, matchID)
		return err
	})

	g.Go(func() error {
		var err error
		actions, err = s.actions(gCtx, matchID, store.Filter{})
		return err
	})

	g.Go(func() error {
		var err error
		roster, err = s.playerRepo.ListByMatch(gCtx, matchID, "")
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("failed to load player stats")
		return nil, err
	}
	return ledger.PlayerStats(actions, roster), nil
}

func (s *StatsService) ComparePlayers(ctx context.Context, matchID string, first, second PlayerKey) (*ledger.Comparison, error) {
	stats, err := s.PlayerStats(ctx, matchID)
	if err != nil {
		return nil, err
	}

	find := func(k PlayerKey) (ledger.PlayerStat, error) {
		for _, st := range stats {
			if st.Team == k.Team && st.Number == k.Number {
				return st, nil
			}
		}
		return ledger.PlayerStat{}, fmt.Errorf("player #%d for %q: %w", k.Number, k.Team, domain.ErrNotFound)
	}

	a, err := find(first)
	if err != nil {
		return nil, err
	}
	b, err := find(second)
	if err != nil {
		return nil, err
	}

	cmp := ledger.Compare(a, b)
	return &cmp, nil
}

// TeamRankings ranks teams by points across every match in the catalogue.
func (s *StatsService) TeamRankings(ctx context.Context) ([]ledger.TeamRank, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	matches, err := s.store.ListMatches(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	perMatch := make([][]domain.MatchAction, len(matches))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.RankingConcurrency)
	for i, m := range matches {
		g.Go(func() error {
			actions, err := s.actions(gCtx, m.ID, store.Filter{})
			if err != nil {
				return err
			}
			perMatch[i] = actions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("failed to load actions for rankings")
		return nil, err
	}

	var all []domain.MatchAction
	for _, actions := range perMatch {
		all = append(all, actions...)
	}
	ranks := ledger.TeamRankings(all)
	s.logger.Debug().Int("matches", len(matches)).Int("teams", len(ranks)).Msg("team rankings built")
	return ranks, nil
}

// ActionLog lists a match's actions oldest first. QuarterUnknown lists
// every quarter.
func (s *StatsService) ActionLog(ctx context.Context, matchID string, q domain.Quarter) ([]domain.MatchAction, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StoreReadTimeout)
	defer cancel()

	var filter store.Filter
	if q.Valid() {
		filter.Quarter = q.String()
	}
	return s.actions(ctx, matchID, filter)
}

// ExportActions renders the match's actions as tab-separated share text.
func (s *StatsService) ExportActions(ctx context.Context, matchID string) (*Export, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	match, err := s.match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	actions, err := s.actions(ctx, matchID, store.Filter{})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - All Quarters Actions\n\n", match.Name)
	b.WriteString("Quarter\tTime\tTeam\tPlayer\tAction\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s (%d)\t%s\n",
			a.Quarter, a.GameTimeFormatted, a.Team, a.PlayerName, a.PlayerNumber, a.Type)
	}

	name := match.Name
	if slug.Make(name) == "" {
		name = match.ID
	}
	return &Export{
		Filename: slug.Make(name+" actions") + ".txt",
		Subject:  match.Name + " - Match Actions",
		Text:     b.String(),
	}, nil
}
