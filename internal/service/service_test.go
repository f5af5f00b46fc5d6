package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"afl-tracker/internal/config"
	"afl-tracker/internal/database"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/repository"
	"afl-tracker/internal/session"
	"afl-tracker/internal/store"
	"afl-tracker/internal/store/sqlstore"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type fixture struct {
	store   store.Store
	matches *MatchService
	stats   *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	matchRepo := repository.NewMatchRepository(db, zerolog.Nop())
	playerRepo := repository.NewPlayerRepository(db, zerolog.Nop())
	st := sqlstore.New(matchRepo, repository.NewActionRepository(db, zerolog.Nop()), zerolog.Nop())
	return &fixture{
		store:   st,
		matches: NewMatchService(st, playerRepo, zerolog.Nop()),
		stats:   NewStatsService(st, playerRepo, zerolog.Nop()),
	}
}

func (f *fixture) createMatch(t *testing.T, name, home, away string) *domain.Match {
	t.Helper()
	m, err := f.matches.CreateMatch(context.Background(), domain.Match{Name: name, Venue: "Marvel Stadium", Team1Name: home, Team2Name: away})
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	return m
}

func (f *fixture) addPlayer(t *testing.T, matchID, team string, number int, name string) *domain.Player {
	t.Helper()
	p, err := f.matches.AddPlayer(context.Background(), domain.Player{MatchID: matchID, TeamName: team, Number: number, Name: name})
	if err != nil {
		t.Fatalf("AddPlayer(%s) error = %v", name, err)
	}
	return p
}

func (f *fixture) append(t *testing.T, matchID, typ, team, quarter string, number int, name string) {
	t.Helper()
	rec := domain.ActionRecord{
		ActionType:        typ,
		Team:              team,
		Quarter:           quarter,
		PlayerNumber:      number,
		PlayerName:        name,
		GameTimeFormatted: "01:00",
		Timestamp:         time.Now(),
	}
	if _, err := f.store.AppendAction(context.Background(), matchID, rec); err != nil {
		t.Fatalf("AppendAction() error = %v", err)
	}
}

func TestCreateMatchValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		match domain.Match
	}{
		{name: "no name", match: domain.Match{Team1Name: "Richmond", Team2Name: "Carlton"}},
		{name: "missing team", match: domain.Match{Name: "Round 1", Team1Name: "Richmond"}},
		{name: "same teams", match: domain.Match{Name: "Round 1", Team1Name: "Richmond", Team2Name: " richmond "}},
		{name: "bad color", match: domain.Match{Name: "Round 1", Team1Name: "Richmond", Team2Name: "Carlton", Team1Color: "yellow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.matches.CreateMatch(context.Background(), tt.match); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("CreateMatch() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	m, err := f.matches.CreateMatch(context.Background(), domain.Match{
		Name: "  Round 1 ", Team1Name: "Richmond", Team2Name: "Carlton", Team1Color: "#FFD200",
	})
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	if m.ID == "" || m.Name != "Round 1" {
		t.Fatalf("CreateMatch() = %+v", m)
	}

	got, err := f.matches.GetMatch(context.Background(), m.ID)
	if err != nil || got.Team1Color != "#FFD200" {
		t.Fatalf("GetMatch() = %+v, %v", got, err)
	}
}

func TestListMatchesSearch(t *testing.T) {
	f := newFixture(t)
	f.createMatch(t, "Dreamtime", "Richmond", "Essendon")
	f.createMatch(t, "Showdown", "Adelaide", "Port Adelaide")

	got, err := f.matches.ListMatches(context.Background(), "ADELAIDE")
	if err != nil {
		t.Fatalf("ListMatches() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Showdown" {
		t.Fatalf("ListMatches(ADELAIDE) = %+v", got)
	}

	all, err := f.matches.ListMatches(context.Background(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListMatches() = %d, %v", len(all), err)
	}
}

func TestAddPlayer(t *testing.T) {
	f := newFixture(t)
	m := f.createMatch(t, "Dreamtime", "Richmond", "Essendon")
	f.addPlayer(t, m.ID, "Richmond", 17, "Riewoldt")

	tests := []struct {
		name   string
		player domain.Player
		want   error
	}{
		{name: "duplicate number", player: domain.Player{MatchID: m.ID, TeamName: "Richmond", Number: 17, Name: "Other"}, want: domain.ErrDuplicatePlayer},
		{name: "wrong team", player: domain.Player{MatchID: m.ID, TeamName: "Carlton", Number: 9, Name: "Cripps"}, want: domain.ErrUnknownTeam},
		{name: "no name", player: domain.Player{MatchID: m.ID, TeamName: "Essendon", Number: 9}, want: domain.ErrInvalidInput},
		{name: "number too high", player: domain.Player{MatchID: m.ID, TeamName: "Essendon", Number: 100, Name: "X"}, want: domain.ErrInvalidInput},
		{name: "unknown match", player: domain.Player{MatchID: "nope", TeamName: "Essendon", Number: 9, Name: "X"}, want: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.matches.AddPlayer(context.Background(), tt.player); !errors.Is(err, tt.want) {
				t.Fatalf("AddPlayer() error = %v, want %v", err, tt.want)
			}
		})
	}

	// same number on the other team is fine
	f.addPlayer(t, m.ID, "Essendon", 17, "Merrett")

	roster, err := f.matches.ListRoster(context.Background(), m.ID, "")
	if err != nil || len(roster) != 2 {
		t.Fatalf("ListRoster() = %+v, %v", roster, err)
	}
	if _, err := f.matches.ListRoster(context.Background(), m.ID, "Carlton"); !errors.Is(err, domain.ErrUnknownTeam) {
		t.Fatalf("ListRoster(Carlton) error = %v, want ErrUnknownTeam", err)
	}
}

func TestUpdateAndRemovePlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.createMatch(t, "Dreamtime", "Richmond", "Essendon")
	riewoldt := f.addPlayer(t, m.ID, "Richmond", 17, "Riewoldt")
	merrett := f.addPlayer(t, m.ID, "Essendon", 9, "Merrett")
	f.append(t, m.ID, "Kick", "Richmond", "Quarter 1", 17, "Riewoldt")

	moved := *riewoldt
	moved.TeamName = "Essendon"
	moved.Name = " Jack Riewoldt "
	got, err := f.matches.UpdatePlayer(ctx, moved)
	if err != nil {
		t.Fatalf("UpdatePlayer() error = %v", err)
	}
	if got.TeamName != "Essendon" || got.Name != "Jack Riewoldt" || !got.CreatedAt.Equal(riewoldt.CreatedAt) {
		t.Fatalf("UpdatePlayer() = %+v", got)
	}

	tests := []struct {
		name   string
		player domain.Player
		want   error
	}{
		{name: "number taken on new team", player: domain.Player{ID: riewoldt.ID, MatchID: m.ID, TeamName: "Essendon", Number: 9, Name: "Riewoldt"}, want: domain.ErrDuplicatePlayer},
		{name: "team not in match", player: domain.Player{ID: riewoldt.ID, MatchID: m.ID, TeamName: "Carlton", Number: 17, Name: "Riewoldt"}, want: domain.ErrUnknownTeam},
		{name: "bad number", player: domain.Player{ID: riewoldt.ID, MatchID: m.ID, TeamName: "Essendon", Number: 0, Name: "Riewoldt"}, want: domain.ErrInvalidInput},
		{name: "unknown player", player: domain.Player{ID: "nope", MatchID: m.ID, TeamName: "Essendon", Number: 30, Name: "Ghost"}, want: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.matches.UpdatePlayer(ctx, tt.player); !errors.Is(err, tt.want) {
				t.Fatalf("UpdatePlayer() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := f.matches.RemovePlayer(ctx, m.ID, merrett.ID); err != nil {
		t.Fatalf("RemovePlayer() error = %v", err)
	}
	if err := f.matches.RemovePlayer(ctx, m.ID, merrett.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RemovePlayer() twice error = %v, want ErrNotFound", err)
	}

	roster, err := f.matches.ListRoster(ctx, m.ID, "Essendon")
	if err != nil || len(roster) != 1 || roster[0].ID != riewoldt.ID {
		t.Fatalf("ListRoster(Essendon) = %+v, %v", roster, err)
	}

	// the recorded kick keeps the team and name it was recorded with
	log, err := f.stats.ActionLog(ctx, m.ID, domain.QuarterUnknown)
	if err != nil || len(log) != 1 || log[0].Team != "Richmond" || log[0].PlayerName != "Riewoldt" {
		t.Fatalf("ActionLog() = %+v, %v", log, err)
	}
}

// slowMatchStore holds GetMatch until release closes. With failQuery set,
// the first action query fails once it closes.
type slowMatchStore struct {
	store.Store
	release   chan struct{}
	failQuery chan struct{}
	lookups   atomic.Int32
	queries   atomic.Int32
}

func (s *slowMatchStore) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	s.lookups.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Store.GetMatch(ctx, matchID)
}

func (s *slowMatchStore) QueryActions(ctx context.Context, matchID string, filter store.Filter) ([]domain.ActionRecord, error) {
	if s.failQuery != nil && s.queries.Add(1) == 1 {
		<-s.failQuery
		return nil, &domain.StoreReadError{Op: "query actions", Err: errors.New("boom")}
	}
	return s.Store.QueryActions(ctx, matchID, filter)
}

func TestSharedMatchLookupOutlivesFailedCaller(t *testing.T) {
	f := newFixture(t)
	m := f.createMatch(t, "Dreamtime", "Richmond", "Essendon")
	f.append(t, m.ID, "Kick", "Richmond", "Quarter 1", 17, "Riewoldt")

	slow := &slowMatchStore{Store: f.store, release: make(chan struct{}), failQuery: make(chan struct{})}
	stats := NewStatsService(slow, nil, zerolog.Nop())

	scoreboardErr := make(chan error, 1)
	go func() {
		_, err := stats.Scoreboard(context.Background(), m.ID)
		scoreboardErr <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for slow.lookups.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the scoreboard lookup")
		}
		time.Sleep(time.Millisecond)
	}

	type result struct {
		export *Export
		err    error
	}
	exported := make(chan result, 1)
	go func() {
		e, err := stats.ExportActions(context.Background(), m.ID)
		exported <- result{e, err}
	}()
	time.Sleep(50 * time.Millisecond)

	// the scoreboard's action query fails, cancelling its lookup
	close(slow.failQuery)
	select {
	case err := <-scoreboardErr:
		var rerr *domain.StoreReadError
		if !errors.As(err, &rerr) {
			t.Fatalf("Scoreboard() error = %v, want *StoreReadError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Scoreboard() did not return after its query failed")
	}

	close(slow.release)
	select {
	case res := <-exported:
		if res.err != nil {
			t.Fatalf("ExportActions() error = %v", res.err)
		}
		if !strings.HasPrefix(res.export.Text, "Dreamtime - All Quarters Actions") {
			t.Fatalf("ExportActions() text = %q", res.export.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ExportActions() did not return")
	}
	if n := slow.lookups.Load(); n != 1 {
		t.Fatalf("GetMatch called %d times, want one shared lookup", n)
	}
}

func TestScoreboardAndStats(t *testing.T) {
	f := newFixture(t)
	m := f.createMatch(t, "Dreamtime", "Richmond", "Essendon")
	f.addPlayer(t, m.ID, "Richmond", 17, "Riewoldt")
	f.addPlayer(t, m.ID, "Essendon", 7, "Parish")
	f.addPlayer(t, m.ID, "Essendon", 1, "Benched")

	f.append(t, m.ID, "Kick", "Richmond", "Quarter 1", 17, "Riewoldt")
	f.append(t, m.ID, "Goal", "Richmond", "Quarter 1", 17, "Riewoldt")
	f.append(t, m.ID, "Handball", "Essendon", "Quarter 2", 7, "Parish")
	f.append(t, m.ID, "Behind", "Essendon", "Quarter 2", 7, "Parish")
	f.append(t, m.ID, "Tackle", "Essendon", "Quarter 3", 7, "Parish")

	sb, err := f.stats.Scoreboard(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Scoreboard() error = %v", err)
	}
	if sb.Home.Points != 6 || sb.Away.Points != 1 || sb.Leader != "Richmond" || sb.Margin != 5 {
		t.Fatalf("Scoreboard() = %+v", sb)
	}
	if sb.Home.Quarters[domain.Quarter1].Goals != 1 || sb.Away.Quarters[domain.Quarter2].Behinds != 1 {
		t.Fatalf("quarter breakdown = %+v / %+v", sb.Home.Quarters, sb.Away.Quarters)
	}

	stats, err := f.stats.PlayerStats(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("PlayerStats() error = %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("PlayerStats() len = %d, want 3 (bench player included)", len(stats))
	}

	cmp, err := f.stats.ComparePlayers(context.Background(), m.ID, PlayerKey{"Richmond", 17}, PlayerKey{"Essendon", 7})
	if err != nil {
		t.Fatalf("ComparePlayers() error = %v", err)
	}
	if cmp.First.Goals != 1 || cmp.Second.Tackles != 1 {
		t.Fatalf("ComparePlayers() = %+v", cmp)
	}
	if _, err := f.stats.ComparePlayers(context.Background(), m.ID, PlayerKey{"Richmond", 17}, PlayerKey{"Essendon", 99}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ComparePlayers(unknown) error = %v, want ErrNotFound", err)
	}

	q2, err := f.stats.ActionLog(context.Background(), m.ID, domain.Quarter2)
	if err != nil || len(q2) != 2 {
		t.Fatalf("ActionLog(Q2) = %d, %v", len(q2), err)
	}
	all, err := f.stats.ActionLog(context.Background(), m.ID, domain.QuarterUnknown)
	if err != nil || len(all) != 5 {
		t.Fatalf("ActionLog(all) = %d, %v", len(all), err)
	}
}

func TestScoreboardUnknownMatch(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stats.Scoreboard(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Scoreboard() error = %v, want ErrNotFound", err)
	}
}

func TestTeamRankingsAcrossMatches(t *testing.T) {
	f := newFixture(t)
	r1 := f.createMatch(t, "Round 1", "Richmond", "Essendon")
	r2 := f.createMatch(t, "Round 2", "Richmond", "Carlton")

	f.append(t, r1.ID, "Goal", "Essendon", "Quarter 1", 7, "Parish")
	f.append(t, r1.ID, "Behind", "Richmond", "Quarter 1", 17, "Riewoldt")
	f.append(t, r2.ID, "Goal", "Richmond", "Quarter 1", 17, "Riewoldt")
	f.append(t, r2.ID, "Goal", "Richmond", "Quarter 2", 17, "Riewoldt")

	ranks, err := f.stats.TeamRankings(context.Background())
	if err != nil {
		t.Fatalf("TeamRankings() error = %v", err)
	}
	if len(ranks) != 2 {
		t.Fatalf("TeamRankings() = %+v, want 2 teams", ranks)
	}
	if ranks[0].Team != "Richmond" || ranks[0].Points != 13 || ranks[0].Rank != 1 {
		t.Fatalf("first = %+v, want Richmond on 13", ranks[0])
	}
	if ranks[1].Team != "Essendon" || ranks[1].Points != 6 {
		t.Fatalf("second = %+v, want Essendon on 6", ranks[1])
	}
}

func TestExportActions(t *testing.T) {
	f := newFixture(t)
	m := f.createMatch(t, "ANZAC Day Clash!", "Collingwood", "Essendon")
	f.append(t, m.ID, "Kick", "Collingwood", "Quarter 1", 4, "Pendlebury")
	f.append(t, m.ID, "Mark", "Essendon", "Quarter 2", 7, "Parish")

	exp, err := f.stats.ExportActions(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ExportActions() error = %v", err)
	}
	if exp.Filename != "anzac-day-clash-actions.txt" {
		t.Fatalf("Filename = %q", exp.Filename)
	}

	lines := strings.Split(strings.TrimSpace(exp.Text), "\n")
	want := []string{
		"ANZAC Day Clash! - All Quarters Actions",
		"",
		"Quarter\tTime\tTeam\tPlayer\tAction",
		strings.Repeat("-", 40),
		"Quarter 1\t01:00\tCollingwood\tPendlebury (4)\tKick",
		"Quarter 2\t01:00\tEssendon\tParish (7)\tMark",
	}
	if len(lines) != len(want) {
		t.Fatalf("export has %d lines, want %d:\n%s", len(lines), len(want), exp.Text)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSessionServiceReapsIdle(t *testing.T) {
	f := newFixture(t)
	m := f.createMatch(t, "Round 1", "Richmond", "Essendon")
	clk := clockwork.NewFakeClock()

	svc, err := NewSessionService(&config.Config{SessionIdleTTL: 30 * time.Minute}, f.store, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionService() error = %v", err)
	}
	defer svc.Shutdown()

	q1, err := svc.Open(context.Background(), m.ID, domain.Quarter1)
	if err != nil {
		t.Fatalf("Open(Q1) error = %v", err)
	}
	again, err := svc.Open(context.Background(), m.ID, domain.Quarter1)
	if err != nil || again != q1 {
		t.Fatalf("second Open() returned a different session")
	}
	if _, err := svc.Open(context.Background(), m.ID, domain.Quarter2); err != nil {
		t.Fatalf("Open(Q2) error = %v", err)
	}
	if _, err := q1.StartQuarter(context.Background()); err != nil {
		t.Fatalf("StartQuarter() error = %v", err)
	}

	clk.Advance(10 * time.Minute)
	svc.ReapIdle()
	if svc.Len() != 2 {
		t.Fatalf("reaped before TTL: %d open", svc.Len())
	}

	// a paused clock counts as idle
	q1.PauseQuarter()
	clk.Advance(31 * time.Minute)
	svc.ReapIdle()
	if svc.Len() != 0 {
		t.Fatalf("idle sessions left open: %d", svc.Len())
	}
	if _, err := svc.Get(m.ID, domain.Quarter2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after reap error = %v, want ErrNotFound", err)
	}
	if err := svc.Close(m.ID, domain.Quarter1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Close() after reap error = %v, want ErrNotFound", err)
	}
}

func TestSessionOpenDoesNotBlockOtherSessions(t *testing.T) {
	f := newFixture(t)
	m := f.createMatch(t, "Round 1", "Richmond", "Essendon")
	slow := &slowMatchStore{Store: f.store, release: make(chan struct{})}

	svc, err := NewSessionService(&config.Config{SessionIdleTTL: 30 * time.Minute}, slow, clockwork.NewFakeClock(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionService() error = %v", err)
	}
	defer svc.Shutdown()

	type opened struct {
		sess *session.Session
		err  error
	}
	results := make(chan opened, 2)
	open := func() {
		sess, err := svc.Open(context.Background(), m.ID, domain.Quarter1)
		results <- opened{sess, err}
	}
	go open()
	deadline := time.Now().Add(2 * time.Second)
	for slow.lookups.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the session load")
		}
		time.Sleep(time.Millisecond)
	}
	go open()

	// the load is stuck on the store; lookups of other quarters still answer
	answered := make(chan struct{})
	go func() {
		defer close(answered)
		if _, err := svc.Get(m.ID, domain.Quarter2); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get(Q2) error = %v, want ErrNotFound", err)
		}
		if n := svc.Len(); n != 0 {
			t.Errorf("Len() = %d during load, want 0", n)
		}
		svc.ReapIdle()
	}()
	select {
	case <-answered:
	case <-time.After(time.Second):
		t.Fatalf("Get/Len/ReapIdle blocked behind a loading session")
	}

	// a caller that gives up does not cancel the shared load
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Open(ctx, m.ID, domain.Quarter1); !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() with cancelled context error = %v, want context.Canceled", err)
	}

	close(slow.release)
	first, second := <-results, <-results
	if first.err != nil || second.err != nil {
		t.Fatalf("Open() errors = %v, %v", first.err, second.err)
	}
	if first.sess != second.sess {
		t.Fatalf("concurrent Open() returned different sessions")
	}
	if n := slow.lookups.Load(); n != 1 {
		t.Fatalf("match loaded %d times, want 1", n)
	}
	if svc.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", svc.Len())
	}
}
