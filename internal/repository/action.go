package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"afl-tracker/internal/domain"
	"afl-tracker/internal/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type ActionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewActionRepository(sqlDB *sql.DB, logger zerolog.Logger) *ActionRepository {
	return &ActionRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const actionColumns = `seq, id, match_id, action_type, player_ref, player_name, player_number,
	team, quarter, game_time, game_time_formatted, timestamp`

// Append inserts an action. The stored timestamp is raised to one
// nanosecond past the match's latest action when it would not sort after it.
func (r *ActionRepository) Append(ctx context.Context, record *domain.ActionRecord) error {
	if record.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		record.ID = id
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM match_actions WHERE match_id = ?`, record.MatchID).Scan(&latest); err != nil {
		return fmt.Errorf("failed to read latest timestamp: %w", err)
	}
	ts := record.Timestamp.UnixNano()
	if latest.Valid && ts <= latest.Int64 {
		ts = latest.Int64 + 1
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO match_actions (id, match_id, action_type, player_ref,
		player_name, player_number, team, quarter, game_time, game_time_formatted, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.MatchID, record.ActionType, record.PlayerRef, record.PlayerName,
		record.PlayerNumber, record.Team, record.Quarter, record.GameTime, record.GameTimeFormatted, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read action seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit action: %w", err)
	}

	record.Seq = seq
	record.Timestamp = time.Unix(0, ts)

	r.logger.Debug().
		Str("match_id", record.MatchID).
		Str("action_id", record.ID).
		Str("action_type", record.ActionType).
		Str("team", record.Team).
		Int64("seq", seq).
		Msg("action appended")
	return nil
}

func (r *ActionRepository) Query(ctx context.Context, matchID string, q store.Filter) ([]domain.ActionRecord, error) {
	var (
		where = []string{"match_id = ?"}
		args  = []any{matchID}
	)
	if q.Quarter != "" {
		where = append(where, "quarter = ?")
		args = append(args, q.Quarter)
	}
	if q.Team != "" {
		where = append(where, "team = ?")
		args = append(args, q.Team)
	}
	if q.PlayerNumber != nil {
		where = append(where, "player_number = ?")
		args = append(args, *q.PlayerNumber)
	}
	if q.ActionType != "" {
		where = append(where, "action_type = ?")
		args = append(args, q.ActionType)
	}

	order := "timestamp ASC, seq ASC"
	if q.Descending {
		order = "timestamp DESC, seq DESC"
	}

	stmt := `SELECT ` + actionColumns + ` FROM match_actions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var records []domain.ActionRecord
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanAction(s scanner) (domain.ActionRecord, error) {
	var (
		rec domain.ActionRecord
		ts  int64
	)
	err := s.Scan(&rec.Seq, &rec.ID, &rec.MatchID, &rec.ActionType, &rec.PlayerRef, &rec.PlayerName,
		&rec.PlayerNumber, &rec.Team, &rec.Quarter, &rec.GameTime, &rec.GameTimeFormatted, &ts)
	if err != nil {
		return rec, err
	}
	rec.Timestamp = time.Unix(0, ts)
	return rec, nil
}
