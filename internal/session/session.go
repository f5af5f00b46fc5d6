// Package session runs the live recording workflow for one quarter of a
// match: the quarter clock, two-step action entry, and the legality gate,
// backed by a store and an in-memory ledger of the match's actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"afl-tracker/internal/clock"
	"afl-tracker/internal/constants"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/gate"
	"afl-tracker/internal/ledger"
	"afl-tracker/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("session closed")

type Option func(*Session)

func WithQuarterDuration(d time.Duration) Option {
	return func(s *Session) { s.duration = d }
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

type Session struct {
	matchID  string
	quarter  domain.Quarter
	match    *domain.Match
	store    store.Store
	clk      clockwork.Clock
	duration time.Duration
	interval time.Duration
	clock    *clock.Clock
	driver   *clock.Driver
	ledger   *ledger.Ledger
	logger   zerolog.Logger

	// mu serializes mutating calls. Clock observers run on the driver
	// goroutine and must never take it: Pause and Stop hold mu while
	// waiting for that goroutine to exit.
	mu         sync.Mutex
	pending    domain.ActionType
	committing bool

	last       atomic.Pointer[domain.LastAction]
	lastActive atomic.Int64
	closed     atomic.Bool

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open loads the match and its recorded actions and starts following the
// store for actions recorded elsewhere. The clock starts Stopped.
func Open(ctx context.Context, st store.Store, matchID string, quarter domain.Quarter, clk clockwork.Clock, logger zerolog.Logger, opts ...Option) (*Session, error) {
	if !quarter.Valid() {
		return nil, fmt.Errorf("quarter %d: %w", quarter, domain.ErrInvalidInput)
	}

	match, err := st.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	records, err := st.QueryActions(ctx, matchID, store.Filter{})
	if err != nil {
		return nil, err
	}

	s := &Session{
		matchID:  matchID,
		quarter:  quarter,
		match:    match,
		store:    st,
		clk:      clk,
		duration: constants.QuarterDuration,
		interval: constants.ClockTickInterval,
		logger:   logger.With().Str("match_id", matchID).Str("quarter", quarter.String()).Logger(),
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ledger = ledger.New(s.decode(records)...)
	s.refreshFact()

	s.clock = clock.New(s.duration)
	s.clock.Observe(s.onClock)
	s.driver = clock.NewDriver(s.clock, clk, s.interval, s.logger)

	subCtx, cancel := context.WithCancel(context.Background())
	updates, err := st.SubscribeActions(subCtx, matchID, store.Filter{})
	if err != nil {
		cancel()
		return nil, err
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.follow(updates)

	s.touch()
	s.logger.Info().Int("actions", s.ledger.Len()).Msg("quarter session opened")
	return s, nil
}

func (s *Session) MatchID() string { return s.matchID }

func (s *Session) Quarter() domain.Quarter { return s.quarter }

func (s *Session) Match() *domain.Match { return s.match }

// SelectAction stores the pending action type, replacing any earlier one.
func (s *Session) SelectAction(t domain.ActionType) error {
	s.touch()
	if s.closed.Load() {
		return ErrClosed
	}
	if !t.Recordable() {
		return &domain.IllegalActionError{Action: t, Reason: "not a recordable action"}
	}

	s.mu.Lock()
	prev := s.pending
	s.pending = t
	s.mu.Unlock()

	s.logger.Debug().
		Str("action", t.String()).
		Str("replaced", prev.String()).
		Msg("action selected")
	return nil
}

// SelectPlayer pairs the pending action with player and commits it. Errors
// raised before the write keep the pending selection; a failed write
// clears it.
func (s *Session) SelectPlayer(ctx context.Context, player domain.Player) (*domain.MatchAction, error) {
	s.touch()
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	if s.pending == domain.ActionUnknown {
		s.mu.Unlock()
		return nil, s.fail(domain.ErrNoActionSelected)
	}
	if s.committing {
		s.mu.Unlock()
		return nil, s.fail(domain.ErrCommitInFlight)
	}
	snap := s.clock.Snapshot()
	if snap.State != clock.Running {
		s.mu.Unlock()
		return nil, s.fail(domain.ErrGameNotRunning)
	}
	if !s.match.HasTeam(player.TeamName) {
		s.mu.Unlock()
		return nil, s.fail(fmt.Errorf("%s (%q): %w", player.Name, player.TeamName, domain.ErrUnknownTeam))
	}
	if err := gate.Check(snap.State, s.last.Load(), s.pending, player.TeamName); err != nil {
		s.mu.Unlock()
		return nil, s.fail(err)
	}

	action := domain.MatchAction{
		MatchID:           s.matchID,
		Type:              s.pending,
		PlayerRef:         player.ID,
		PlayerName:        player.Name,
		PlayerNumber:      player.Number,
		Team:              player.TeamName,
		Quarter:           s.quarter,
		GameTime:          snap.ElapsedMillis(),
		GameTimeFormatted: clock.Format(snap.Elapsed),
		Timestamp:         s.clk.Now(),
	}
	s.committing = true
	s.mu.Unlock()

	id, err := s.store.AppendAction(ctx, s.matchID, action.Record())

	s.mu.Lock()
	s.committing = false
	s.pending = domain.ActionUnknown
	if err != nil {
		s.mu.Unlock()
		var werr *domain.StoreWriteError
		if !errors.As(err, &werr) {
			err = &domain.StoreWriteError{Op: "append action", Err: err}
		}
		s.logger.Error().Err(err).Str("action", action.Type.String()).Msg("failed to record action")
		return nil, s.fail(err)
	}

	action.ID = id
	if !s.ledger.Contains(id) {
		action = s.ledger.Record(action)
	}
	s.last.Store(&domain.LastAction{Type: action.Type, Team: action.Team})
	state := s.clock.State()
	s.mu.Unlock()

	s.logger.Info().
		Str("action_id", id).
		Str("action", action.Type.String()).
		Str("team", action.Team).
		Int("number", action.PlayerNumber).
		Str("game_time", action.GameTimeFormatted).
		Msg("action recorded")

	s.publishEligibility(state)
	s.publish(Event{Kind: EventConfirmation, Confirmation: &Confirmation{
		ActionID:   id,
		Action:     action.Type,
		PlayerName: action.PlayerName,
		Team:       action.Team,
		GameTime:   action.GameTimeFormatted,
	}})
	return &action, nil
}

// StartQuarter refreshes the last action from the store, then starts or
// resumes the clock. A read failure leaves the clock and the pending
// selection untouched.
func (s *Session) StartQuarter(ctx context.Context) (clock.Snapshot, error) {
	s.touch()
	if s.closed.Load() {
		return clock.Snapshot{}, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.QueryActions(ctx, s.matchID, store.Filter{})
	if err != nil {
		var rerr *domain.StoreReadError
		if !errors.As(err, &rerr) {
			err = &domain.StoreReadError{Op: "query actions", Err: err}
		}
		s.logger.Warn().Err(err).Msg("failed to refresh last action")
		return s.clock.Snapshot(), s.fail(err)
	}
	s.ledger.Merge(s.decode(records))
	if !s.committing {
		s.refreshFact()
	}

	if s.clock.Start() {
		s.driver.Start()
	} else {
		s.publishEligibility(s.clock.State())
	}
	return s.clock.Snapshot(), nil
}

func (s *Session) PauseQuarter() clock.Snapshot {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.clock.Pause() {
		s.publishEligibility(s.clock.State())
	}
	s.driver.Stop()
	return s.clock.Snapshot()
}

// StopQuarter halts the clock and discards elapsed time.
func (s *Session) StopQuarter() clock.Snapshot {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.Stop()
	s.driver.Stop()
	return s.clock.Snapshot()
}

type State struct {
	MatchID       string                      `json:"matchId"`
	Quarter       domain.Quarter              `json:"quarter"`
	Clock         *ClockView                  `json:"clock"`
	Pending       *domain.ActionType          `json:"pending,omitempty"`
	Committing    bool                        `json:"committing"`
	LastAction    *domain.LastAction          `json:"lastAction,omitempty"`
	Eligible      map[string]domain.ActionSet `json:"eligible"`
	QuarterScores map[string]ledger.Score     `json:"quarterScores"`
	MatchScores   map[string]ledger.Score     `json:"matchScores"`
	Actions       int                         `json:"actions"`
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	pending, committing := s.pending, s.committing
	s.mu.Unlock()

	snap := s.clock.Snapshot()
	last := s.last.Load()
	st := State{
		MatchID:       s.matchID,
		Quarter:       s.quarter,
		Clock:         NewClockView(snap),
		Committing:    committing,
		LastAction:    last,
		Eligible:      gate.ForTeams(snap.State, last, s.match.Teams()...),
		QuarterScores: make(map[string]ledger.Score, 2),
		MatchScores:   make(map[string]ledger.Score, 2),
		Actions:       s.ledger.Len(),
	}
	if pending != domain.ActionUnknown {
		st.Pending = &pending
	}
	for _, team := range s.match.Teams() {
		st.QuarterScores[team] = s.ledger.Score(team, s.quarter)
		st.MatchScores[team] = s.ledger.Score(team, domain.QuarterUnknown)
	}
	return st
}

// Actions returns the session's view of the match's actions.
func (s *Session) Actions() []domain.MatchAction {
	return s.ledger.Actions()
}

// Subscribe returns a buffered event stream and a func that detaches it.
// Events are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, constants.SessionEventBuffer)

	s.subsMu.Lock()
	if s.closed.Load() {
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// IdleSince reports the last time a caller used the session.
func (s *Session) IdleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Running reports whether the quarter clock is running.
func (s *Session) Running() bool {
	return s.clock.IsRunning()
}

// Close stops the clock driver and the store subscription and closes every
// event stream. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.driver.Stop()
		<-s.done

		s.subsMu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subsMu.Unlock()

		s.logger.Info().Msg("quarter session closed")
	})
}

func (s *Session) follow(updates <-chan []domain.ActionRecord) {
	defer close(s.done)

	for records := range updates {
		actions := s.decode(records)

		s.mu.Lock()
		added := s.ledger.Merge(actions)
		// an in-flight commit owns the last-action fact until it returns
		refresh := added > 0 && !s.committing
		if refresh {
			s.refreshFact()
		}
		state := s.clock.State()
		s.mu.Unlock()

		if refresh {
			s.logger.Debug().Int("added", added).Msg("merged actions from store")
			s.publishEligibility(state)
		}
	}
}

func (s *Session) onClock(prev clock.State, snap clock.Snapshot) {
	view := NewClockView(snap)
	if prev == snap.State {
		s.publish(Event{Kind: EventTick, Clock: view})
		return
	}

	s.logger.Info().
		Str("from", prev.String()).
		Str("to", snap.State.String()).
		Str("elapsed", view.ElapsedDisplay).
		Msg("clock transition")
	s.publish(Event{Kind: EventClock, Clock: view})
	s.publishEligibility(snap.State)
}

func (s *Session) refreshFact() {
	if last, ok := s.ledger.LastAction(); ok {
		s.last.Store(&last)
		return
	}
	s.last.Store(nil)
}

func (s *Session) decode(records []domain.ActionRecord) []domain.MatchAction {
	actions, skipped := ledger.Decode(records)
	for _, err := range skipped {
		s.logger.Warn().Err(err).Msg("skipping malformed action record")
	}
	return actions
}

func (s *Session) publishEligibility(state clock.State) {
	s.publish(Event{
		Kind:     EventEligibility,
		Eligible: gate.ForTeams(state, s.last.Load(), s.match.Teams()...),
	})
}

func (s *Session) fail(err error) error {
	s.publish(Event{Kind: EventError, Error: err.Error()})
	return err
}

func (s *Session) publish(ev Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug().Int("subscriber", id).Str("kind", ev.Kind.String()).Msg("dropping event for slow subscriber")
		}
	}
}

func (s *Session) touch() {
	s.lastActive.Store(s.clk.Now().UnixNano())
}
