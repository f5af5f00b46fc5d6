package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"afl-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const playerColumns = `id, match_id, team_name, number, name, position, age, height, image, created_at`

func (r *PlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	if player.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		player.ID = id
	}
	if player.CreatedAt.IsZero() {
		player.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		player.ID, player.MatchID, player.TeamName, player.Number, player.Name,
		player.Position, player.Age, player.Height, player.Image, player.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("player #%d for %s: %w", player.Number, player.TeamName, domain.ErrDuplicatePlayer)
		}
		return fmt.Errorf("failed to insert player %s: %w", player.ID, err)
	}

	r.logger.Debug().
		Str("match_id", player.MatchID).
		Str("team", player.TeamName).
		Int("number", player.Number).
		Msg("player added to roster")
	return nil
}

func (r *PlayerRepository) Get(ctx context.Context, matchID, playerID string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE match_id = ? AND id = ?`, matchID, playerID)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", playerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", playerID, err)
	}
	return p, nil
}

// Update rewrites a player's details, including their team. The
// (match, team, number) uniqueness still applies.
func (r *PlayerRepository) Update(ctx context.Context, player *domain.Player) error {
	res, err := r.db.ExecContext(ctx, `UPDATE players
		SET team_name = ?, number = ?, name = ?, position = ?, age = ?, height = ?, image = ?
		WHERE match_id = ? AND id = ?`,
		player.TeamName, player.Number, player.Name, player.Position,
		player.Age, player.Height, player.Image, player.MatchID, player.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("player #%d for %s: %w", player.Number, player.TeamName, domain.ErrDuplicatePlayer)
		}
		return fmt.Errorf("failed to update player %s: %w", player.ID, err)
	}
	if err := requireRow(res, player.ID); err != nil {
		return err
	}

	r.logger.Debug().
		Str("match_id", player.MatchID).
		Str("player_id", player.ID).
		Str("team", player.TeamName).
		Int("number", player.Number).
		Msg("player updated")
	return nil
}

func (r *PlayerRepository) Delete(ctx context.Context, matchID, playerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE match_id = ? AND id = ?`, matchID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", playerID, err)
	}
	if err := requireRow(res, playerID); err != nil {
		return err
	}

	r.logger.Debug().Str("match_id", matchID).Str("player_id", playerID).Msg("player removed from roster")
	return nil
}

func requireRow(res sql.Result, playerID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("player %s: %w", playerID, domain.ErrNotFound)
	}
	return nil
}

// ListByMatch returns a match's roster ordered by team and number. An empty
// team returns both teams.
func (r *PlayerRepository) ListByMatch(ctx context.Context, matchID, team string) ([]domain.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE match_id = ?`
	args := []any{matchID}
	if team != "" {
		q += ` AND team_name = ?`
		args = append(args, team)
	}
	q += ` ORDER BY team_name, number`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func scanPlayer(s scanner) (*domain.Player, error) {
	var (
		p         domain.Player
		createdAt int64
	)
	err := s.Scan(&p.ID, &p.MatchID, &p.TeamName, &p.Number, &p.Name, &p.Position,
		&p.Age, &p.Height, &p.Image, &createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, createdAt)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
