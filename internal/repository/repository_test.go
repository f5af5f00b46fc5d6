package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"afl-tracker/internal/database"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/store"

	"github.com/rs/zerolog"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMatch(t *testing.T, db *sql.DB, name, home, away string) *domain.Match {
	t.Helper()
	m := &domain.Match{Name: name, Venue: "MCG", Team1Name: home, Team2Name: away}
	if err := NewMatchRepository(db, zerolog.Nop()).Create(context.Background(), m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

func TestMatchRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewMatchRepository(db, zerolog.Nop())

	first := seedMatch(t, db, "Round 1", "Carlton", "Collingwood")
	time.Sleep(time.Millisecond)
	second := seedMatch(t, db, "Round 2", "Geelong", "Sydney")

	got, err := repo.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Team1Name != "Carlton" || got.Venue != "MCG" {
		t.Fatalf("Get() = %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	all, err := repo.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("List() = %v, want newest first", all)
	}

	found, err := repo.List(ctx, "syd", 10)
	if err != nil {
		t.Fatalf("List(syd) error = %v", err)
	}
	if len(found) != 1 || found[0].ID != second.ID {
		t.Fatalf("List(syd) = %v", found)
	}
}

func TestPlayerRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := seedMatch(t, db, "Round 1", "Carlton", "Collingwood")
	repo := NewPlayerRepository(db, zerolog.Nop())

	players := []domain.Player{
		{MatchID: m.ID, TeamName: "Collingwood", Number: 4, Name: "Pendlebury"},
		{MatchID: m.ID, TeamName: "Carlton", Number: 9, Name: "Cripps"},
		{MatchID: m.ID, TeamName: "Carlton", Number: 5, Name: "Curnow"},
	}
	for i := range players {
		if err := repo.Create(ctx, &players[i]); err != nil {
			t.Fatalf("Create(%s) error = %v", players[i].Name, err)
		}
	}

	dup := domain.Player{MatchID: m.ID, TeamName: "Carlton", Number: 9, Name: "Impostor"}
	if err := repo.Create(ctx, &dup); !errors.Is(err, domain.ErrDuplicatePlayer) {
		t.Fatalf("Create(dup) error = %v, want ErrDuplicatePlayer", err)
	}

	roster, err := repo.ListByMatch(ctx, m.ID, "")
	if err != nil {
		t.Fatalf("ListByMatch() error = %v", err)
	}
	want := []string{"Curnow", "Cripps", "Pendlebury"}
	if len(roster) != len(want) {
		t.Fatalf("ListByMatch() len = %d, want %d", len(roster), len(want))
	}
	for i, name := range want {
		if roster[i].Name != name {
			t.Fatalf("roster[%d] = %s, want %s", i, roster[i].Name, name)
		}
	}

	carlton, err := repo.ListByMatch(ctx, m.ID, "Carlton")
	if err != nil {
		t.Fatalf("ListByMatch(Carlton) error = %v", err)
	}
	if len(carlton) != 2 {
		t.Fatalf("ListByMatch(Carlton) len = %d, want 2", len(carlton))
	}

	got, err := repo.Get(ctx, m.ID, players[0].ID)
	if err != nil || got.Name != "Pendlebury" {
		t.Fatalf("Get() = %v, %v", got, err)
	}
}

func TestPlayerRepositoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := seedMatch(t, db, "Round 1", "Carlton", "Collingwood")
	repo := NewPlayerRepository(db, zerolog.Nop())

	cripps := domain.Player{MatchID: m.ID, TeamName: "Carlton", Number: 9, Name: "Cripps"}
	curnow := domain.Player{MatchID: m.ID, TeamName: "Carlton", Number: 5, Name: "Curnow"}
	for _, p := range []*domain.Player{&cripps, &curnow} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.Name, err)
		}
	}

	moved := cripps
	moved.TeamName = "Collingwood"
	moved.Position = "Midfield"
	if err := repo.Update(ctx, &moved); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := repo.Get(ctx, m.ID, cripps.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TeamName != "Collingwood" || got.Number != 9 || got.Position != "Midfield" {
		t.Fatalf("Get() after Update = %+v", got)
	}

	clash := curnow
	clash.TeamName = "Collingwood"
	clash.Number = 9
	if err := repo.Update(ctx, &clash); !errors.Is(err, domain.ErrDuplicatePlayer) {
		t.Fatalf("Update(clash) error = %v, want ErrDuplicatePlayer", err)
	}

	ghost := domain.Player{ID: "ghost", MatchID: m.ID, TeamName: "Carlton", Number: 30, Name: "Ghost"}
	if err := repo.Update(ctx, &ghost); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(ghost) error = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, m.ID, curnow.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, m.ID, curnow.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete() twice error = %v, want ErrNotFound", err)
	}
	roster, err := repo.ListByMatch(ctx, m.ID, "")
	if err != nil || len(roster) != 1 || roster[0].ID != cripps.ID {
		t.Fatalf("ListByMatch() after Delete = %+v, %v", roster, err)
	}
}

func TestActionRepositoryOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := seedMatch(t, db, "Round 1", "Carlton", "Collingwood")
	repo := NewActionRepository(db, zerolog.Nop())

	ts := time.Date(2025, 3, 14, 19, 30, 0, 0, time.UTC)
	recs := []domain.ActionRecord{
		{MatchID: m.ID, ActionType: "Kick", Team: "Carlton", Quarter: "Quarter 1", PlayerNumber: 9, Timestamp: ts},
		// same timestamp: stored one nanosecond later
		{MatchID: m.ID, ActionType: "Goal", Team: "Carlton", Quarter: "Quarter 1", PlayerNumber: 9, Timestamp: ts},
		// earlier timestamp still sorts last
		{MatchID: m.ID, ActionType: "Mark", Team: "Collingwood", Quarter: "Quarter 2", PlayerNumber: 4, Timestamp: ts.Add(-time.Minute)},
	}
	for i := range recs {
		if err := repo.Append(ctx, &recs[i]); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if recs[i].ID == "" || recs[i].Seq == 0 {
			t.Fatalf("Append() did not assign id/seq: %+v", recs[i])
		}
	}
	if !recs[1].Timestamp.After(recs[0].Timestamp) || !recs[2].Timestamp.After(recs[1].Timestamp) {
		t.Fatalf("timestamps not strictly increasing: %v %v %v", recs[0].Timestamp, recs[1].Timestamp, recs[2].Timestamp)
	}

	asc, err := repo.Query(ctx, m.ID, store.Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	for i, want := range []string{"Kick", "Goal", "Mark"} {
		if asc[i].ActionType != want {
			t.Fatalf("asc[%d] = %s, want %s", i, asc[i].ActionType, want)
		}
	}

	latest, err := repo.Query(ctx, m.ID, store.Filter{Limit: 1, Descending: true})
	if err != nil {
		t.Fatalf("Query(latest) error = %v", err)
	}
	if len(latest) != 1 || latest[0].ID != recs[2].ID {
		t.Fatalf("Query(latest) = %+v", latest)
	}
}

func TestActionRepositoryFilter(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := seedMatch(t, db, "Round 1", "Carlton", "Collingwood")
	other := seedMatch(t, db, "Round 2", "Geelong", "Sydney")
	repo := NewActionRepository(db, zerolog.Nop())

	add := func(matchID, typ, team, quarter string, number int) {
		rec := domain.ActionRecord{MatchID: matchID, ActionType: typ, Team: team, Quarter: quarter, PlayerNumber: number}
		if err := repo.Append(ctx, &rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	add(m.ID, "Kick", "Carlton", "Quarter 1", 9)
	add(m.ID, "Kick", "Carlton", "Quarter 2", 5)
	add(m.ID, "Tackle", "Collingwood", "Quarter 2", 4)
	add(other.ID, "Kick", "Geelong", "Quarter 2", 9)

	nine := 9
	tests := []struct {
		name   string
		filter store.Filter
		want   int
	}{
		{name: "all", filter: store.Filter{}, want: 3},
		{name: "quarter", filter: store.Filter{Quarter: "Quarter 2"}, want: 2},
		{name: "team", filter: store.Filter{Team: "Carlton"}, want: 2},
		{name: "player", filter: store.Filter{Team: "Carlton", PlayerNumber: &nine}, want: 1},
		{name: "type", filter: store.Filter{ActionType: "Kick"}, want: 2},
		{name: "limit", filter: store.Filter{Limit: 2}, want: 2},
		{name: "no match", filter: store.Filter{Team: "Geelong"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Query(ctx, m.ID, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("Query() len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
