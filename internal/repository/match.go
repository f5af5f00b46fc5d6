package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"afl-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const matchColumns = `id, name, venue, match_date, match_time, team1_name, team2_name,
	team1_color, team2_color, team1_logo, team2_logo, created_at`

func (r *MatchRepository) Create(ctx context.Context, match *domain.Match) error {
	if match.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		match.ID = id
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.Name, match.Venue, match.Date, match.Time,
		match.Team1Name, match.Team2Name, match.Team1Color, match.Team2Color,
		match.Team1Logo, match.Team2Logo, match.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", match.ID, err)
	}

	r.logger.Debug().Str("match_id", match.ID).Str("name", match.Name).Msg("match created")
	return nil
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", matchID, err)
	}
	return m, nil
}

// List returns matches newest first. A non-empty query filters by name,
// venue or team name, case-insensitively.
func (r *MatchRepository) List(ctx context.Context, query string, limit int) ([]domain.Match, error) {
	q := `SELECT ` + matchColumns + ` FROM matches`
	var args []any
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q += ` WHERE lower(name) LIKE ? OR lower(venue) LIKE ? OR lower(team1_name) LIKE ? OR lower(team2_name) LIKE ?`
		args = append(args, pattern, pattern, pattern, pattern)
	}
	q += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(s scanner) (*domain.Match, error) {
	var (
		m         domain.Match
		createdAt int64
	)
	err := s.Scan(&m.ID, &m.Name, &m.Venue, &m.Date, &m.Time, &m.Team1Name, &m.Team2Name,
		&m.Team1Color, &m.Team2Color, &m.Team1Logo, &m.Team2Logo, &createdAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(0, createdAt)
	return &m, nil
}
