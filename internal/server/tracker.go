package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"afl-tracker/internal/domain"
	"afl-tracker/internal/ledger"
	"afl-tracker/internal/middleware"
	"afl-tracker/internal/service"
	"afl-tracker/internal/session"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

type TrackerServer struct {
	matchSvc   *service.MatchService
	statsSvc   *service.StatsService
	sessionSvc *service.SessionService
	logger     zerolog.Logger
}

func NewTrackerServer(matchSvc *service.MatchService, statsSvc *service.StatsService, sessionSvc *service.SessionService, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{matchSvc: matchSvc, statsSvc: statsSvc, sessionSvc: sessionSvc, logger: logger}
}

func (s *TrackerServer) CreateMatch(ctx context.Context, req *connect.Request[CreateMatchRequest]) (*connect.Response[Match], error) {
	m, err := s.matchSvc.CreateMatch(ctx, domain.Match{
		Name:       req.Msg.Name,
		Venue:      req.Msg.Venue,
		Date:       req.Msg.Date,
		Time:       req.Msg.Time,
		Team1Name:  req.Msg.Team1Name,
		Team2Name:  req.Msg.Team2Name,
		Team1Color: req.Msg.Team1Color,
		Team2Color: req.Msg.Team2Color,
		Team1Logo:  req.Msg.Team1Logo,
		Team2Logo:  req.Msg.Team2Logo,
	})
	if err != nil {
		return nil, s.fail(ctx, CreateMatchProcedure, err)
	}
	resp := toMatch(m)
	return connect.NewResponse(&resp), nil
}

func (s *TrackerServer) GetMatch(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[Match], error) {
	m, err := s.matchSvc.GetMatch(ctx, req.Msg.MatchID)
	if err != nil {
		return nil, s.fail(ctx, GetMatchProcedure, err)
	}
	resp := toMatch(m)
	return connect.NewResponse(&resp), nil
}

func (s *TrackerServer) ListMatches(ctx context.Context, req *connect.Request[ListMatchesRequest]) (*connect.Response[ListMatchesResponse], error) {
	matches, err := s.matchSvc.ListMatches(ctx, strings.TrimSpace(req.Msg.Query))
	if err != nil {
		return nil, s.fail(ctx, ListMatchesProcedure, err)
	}

	resp := &ListMatchesResponse{Matches: make([]Match, 0, len(matches))}
	for i := range matches {
		resp.Matches = append(resp.Matches, toMatch(&matches[i]))
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) AddPlayer(ctx context.Context, req *connect.Request[AddPlayerRequest]) (*connect.Response[Player], error) {
	p, err := s.matchSvc.AddPlayer(ctx, domain.Player{
		MatchID:  req.Msg.MatchID,
		TeamName: req.Msg.Team,
		Number:   req.Msg.Number,
		Name:     req.Msg.Name,
		Position: req.Msg.Position,
		Age:      req.Msg.Age,
		Height:   req.Msg.Height,
		Image:    req.Msg.Image,
	})
	if err != nil {
		return nil, s.fail(ctx, AddPlayerProcedure, err)
	}
	resp := toPlayer(p)
	return connect.NewResponse(&resp), nil
}

func (s *TrackerServer) UpdatePlayer(ctx context.Context, req *connect.Request[UpdatePlayerRequest]) (*connect.Response[Player], error) {
	p, err := s.matchSvc.UpdatePlayer(ctx, domain.Player{
		ID:       req.Msg.PlayerID,
		MatchID:  req.Msg.MatchID,
		TeamName: req.Msg.Team,
		Number:   req.Msg.Number,
		Name:     req.Msg.Name,
		Position: req.Msg.Position,
		Age:      req.Msg.Age,
		Height:   req.Msg.Height,
		Image:    req.Msg.Image,
	})
	if err != nil {
		return nil, s.fail(ctx, UpdatePlayerProcedure, err)
	}
	resp := toPlayer(p)
	return connect.NewResponse(&resp), nil
}

func (s *TrackerServer) RemovePlayer(ctx context.Context, req *connect.Request[RemovePlayerRequest]) (*connect.Response[Empty], error) {
	if err := s.matchSvc.RemovePlayer(ctx, req.Msg.MatchID, req.Msg.PlayerID); err != nil {
		return nil, s.fail(ctx, RemovePlayerProcedure, err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *TrackerServer) ListRoster(ctx context.Context, req *connect.Request[ListRosterRequest]) (*connect.Response[ListRosterResponse], error) {
	players, err := s.matchSvc.ListRoster(ctx, req.Msg.MatchID, req.Msg.Team)
	if err != nil {
		return nil, s.fail(ctx, ListRosterProcedure, err)
	}

	resp := &ListRosterResponse{Players: make([]Player, 0, len(players))}
	for i := range players {
		resp.Players = append(resp.Players, toPlayer(&players[i]))
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) OpenQuarter(ctx context.Context, req *connect.Request[QuarterRequest]) (*connect.Response[session.State], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, true)
	if err != nil {
		return nil, s.fail(ctx, OpenQuarterProcedure, err)
	}
	st := sess.Snapshot()
	return connect.NewResponse(&st), nil
}

// StartQuarter opens the session on first use, so a client may skip
// OpenQuarter.
func (s *TrackerServer) StartQuarter(ctx context.Context, req *connect.Request[QuarterRequest]) (*connect.Response[ClockResponse], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, true)
	if err != nil {
		return nil, s.fail(ctx, StartQuarterProcedure, err)
	}
	snap, err := sess.StartQuarter(ctx)
	if err != nil {
		return nil, s.fail(ctx, StartQuarterProcedure, err)
	}
	return connect.NewResponse(&ClockResponse{Clock: session.NewClockView(snap)}), nil
}

func (s *TrackerServer) PauseQuarter(ctx context.Context, req *connect.Request[QuarterRequest]) (*connect.Response[ClockResponse], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, false)
	if err != nil {
		return nil, s.fail(ctx, PauseQuarterProcedure, err)
	}
	return connect.NewResponse(&ClockResponse{Clock: session.NewClockView(sess.PauseQuarter())}), nil
}

func (s *TrackerServer) StopQuarter(ctx context.Context, req *connect.Request[QuarterRequest]) (*connect.Response[ClockResponse], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, false)
	if err != nil {
		return nil, s.fail(ctx, StopQuarterProcedure, err)
	}
	return connect.NewResponse(&ClockResponse{Clock: session.NewClockView(sess.StopQuarter())}), nil
}

func (s *TrackerServer) SelectAction(ctx context.Context, req *connect.Request[SelectActionRequest]) (*connect.Response[session.State], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, false)
	if err != nil {
		return nil, s.fail(ctx, SelectActionProcedure, err)
	}
	if err := sess.SelectAction(req.Msg.Action); err != nil {
		return nil, s.fail(ctx, SelectActionProcedure, err)
	}
	st := sess.Snapshot()
	return connect.NewResponse(&st), nil
}

func (s *TrackerServer) SelectPlayer(ctx context.Context, req *connect.Request[SelectPlayerRequest]) (*connect.Response[SelectPlayerResponse], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, false)
	if err != nil {
		return nil, s.fail(ctx, SelectPlayerProcedure, err)
	}

	player := domain.Player{
		MatchID:  req.Msg.MatchID,
		TeamName: req.Msg.Team,
		Number:   req.Msg.Number,
		Name:     req.Msg.Name,
	}
	if req.Msg.PlayerID != "" {
		p, err := s.matchSvc.GetPlayer(ctx, req.Msg.MatchID, req.Msg.PlayerID)
		if err != nil {
			return nil, s.fail(ctx, SelectPlayerProcedure, err)
		}
		player = *p
	}

	action, err := sess.SelectPlayer(ctx, player)
	if err != nil {
		return nil, s.fail(ctx, SelectPlayerProcedure, err)
	}
	return connect.NewResponse(&SelectPlayerResponse{Action: toAction(action), State: sess.Snapshot()}), nil
}

func (s *TrackerServer) GetQuarterState(ctx context.Context, req *connect.Request[QuarterRequest]) (*connect.Response[session.State], error) {
	sess, err := s.session(ctx, req.Msg.MatchID, req.Msg.Quarter, false)
	if err != nil {
		return nil, s.fail(ctx, GetQuarterStateProcedure, err)
	}
	st := sess.Snapshot()
	return connect.NewResponse(&st), nil
}

func (s *TrackerServer) CloseQuarter(ctx context.Context, req *connect.Request[QuarterRequest]) (*connect.Response[Empty], error) {
	if err := s.sessionSvc.Close(req.Msg.MatchID, req.Msg.Quarter); err != nil {
		return nil, s.fail(ctx, CloseQuarterProcedure, err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *TrackerServer) GetScoreboard(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[ledger.Scoreboard], error) {
	sb, err := s.statsSvc.Scoreboard(ctx, req.Msg.MatchID)
	if err != nil {
		return nil, s.fail(ctx, GetScoreboardProcedure, err)
	}
	return connect.NewResponse(sb), nil
}

func (s *TrackerServer) GetPlayerStats(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[PlayerStatsResponse], error) {
	stats, err := s.statsSvc.PlayerStats(ctx, req.Msg.MatchID)
	if err != nil {
		return nil, s.fail(ctx, GetPlayerStatsProcedure, err)
	}
	return connect.NewResponse(&PlayerStatsResponse{Players: stats}), nil
}

func (s *TrackerServer) ComparePlayers(ctx context.Context, req *connect.Request[ComparePlayersRequest]) (*connect.Response[ledger.Comparison], error) {
	cmp, err := s.statsSvc.ComparePlayers(ctx, req.Msg.MatchID,
		service.PlayerKey{Team: req.Msg.First.Team, Number: req.Msg.First.Number},
		service.PlayerKey{Team: req.Msg.Second.Team, Number: req.Msg.Second.Number},
	)
	if err != nil {
		return nil, s.fail(ctx, ComparePlayersProcedure, err)
	}
	return connect.NewResponse(cmp), nil
}

func (s *TrackerServer) GetTeamRankings(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[TeamRankingsResponse], error) {
	ranks, err := s.statsSvc.TeamRankings(ctx)
	if err != nil {
		return nil, s.fail(ctx, GetTeamRankingsProcedure, err)
	}
	return connect.NewResponse(&TeamRankingsResponse{Rankings: ranks}), nil
}

func (s *TrackerServer) GetActionLog(ctx context.Context, req *connect.Request[ActionLogRequest]) (*connect.Response[ActionLogResponse], error) {
	q := domain.QuarterUnknown
	if req.Msg.Quarter != "" {
		var err error
		if q, err = domain.ParseQuarter(req.Msg.Quarter); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	actions, err := s.statsSvc.ActionLog(ctx, req.Msg.MatchID, q)
	if err != nil {
		return nil, s.fail(ctx, GetActionLogProcedure, err)
	}
	return connect.NewResponse(&ActionLogResponse{Actions: toActions(actions)}), nil
}

func (s *TrackerServer) ExportActions(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[service.Export], error) {
	exp, err := s.statsSvc.ExportActions(ctx, req.Msg.MatchID)
	if err != nil {
		return nil, s.fail(ctx, ExportActionsProcedure, err)
	}
	return connect.NewResponse(exp), nil
}

func (s *TrackerServer) session(ctx context.Context, matchID string, q domain.Quarter, open bool) (*session.Session, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("quarter is required: %w", domain.ErrInvalidInput)
	}
	if open {
		return s.sessionSvc.Open(ctx, matchID, q)
	}
	return s.sessionSvc.Get(matchID, q)
}

func (s *TrackerServer) fail(ctx context.Context, procedure string, err error) error {
	cerr := connect.NewError(codeOf(err), err)

	event := s.logger.Warn()
	if cerr.Code() == connect.CodeInternal || cerr.Code() == connect.CodeUnavailable {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetRequestID(ctx)).
		Str("procedure", procedure).
		Str("code", cerr.Code().String()).
		Msg("request failed")
	return cerr
}

func codeOf(err error) connect.Code {
	var (
		illegal  *domain.IllegalActionError
		readErr  *domain.StoreReadError
		writeErr *domain.StoreWriteError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, domain.ErrDuplicatePlayer):
		return connect.CodeAlreadyExists
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownTeam):
		return connect.CodeInvalidArgument
	case errors.Is(err, domain.ErrNoActionSelected),
		errors.Is(err, domain.ErrGameNotRunning),
		errors.Is(err, domain.ErrCommitInFlight),
		errors.Is(err, session.ErrClosed),
		errors.As(err, &illegal):
		return connect.CodeFailedPrecondition
	case errors.As(err, &readErr), errors.As(err, &writeErr):
		return connect.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	}
	return connect.CodeInternal
}
