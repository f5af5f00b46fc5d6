package server

import (
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

const AFLTrackerPath = "/afl.v1.AFLTracker/"

const (
	CreateMatchProcedure     = AFLTrackerPath + "CreateMatch"
	GetMatchProcedure        = AFLTrackerPath + "GetMatch"
	ListMatchesProcedure     = AFLTrackerPath + "ListMatches"
	AddPlayerProcedure       = AFLTrackerPath + "AddPlayer"
	UpdatePlayerProcedure    = AFLTrackerPath + "UpdatePlayer"
	RemovePlayerProcedure    = AFLTrackerPath + "RemovePlayer"
	ListRosterProcedure      = AFLTrackerPath + "ListRoster"
	OpenQuarterProcedure     = AFLTrackerPath + "OpenQuarter"
	StartQuarterProcedure    = AFLTrackerPath + "StartQuarter"
	PauseQuarterProcedure    = AFLTrackerPath + "PauseQuarter"
	StopQuarterProcedure     = AFLTrackerPath + "StopQuarter"
	SelectActionProcedure    = AFLTrackerPath + "SelectAction"
	SelectPlayerProcedure    = AFLTrackerPath + "SelectPlayer"
	GetQuarterStateProcedure = AFLTrackerPath + "GetQuarterState"
	CloseQuarterProcedure    = AFLTrackerPath + "CloseQuarter"
	GetScoreboardProcedure   = AFLTrackerPath + "GetScoreboard"
	GetPlayerStatsProcedure  = AFLTrackerPath + "GetPlayerStats"
	ComparePlayersProcedure  = AFLTrackerPath + "ComparePlayers"
	GetTeamRankingsProcedure = AFLTrackerPath + "GetTeamRankings"
	GetActionLogProcedure    = AFLTrackerPath + "GetActionLog"
	ExportActionsProcedure   = AFLTrackerPath + "ExportActions"
)

// jsonCodec replaces connect's protojson codec: the messages are plain
// structs, not generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Codec is the option clients need to talk to the handler.
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

// NewAFLTrackerHandler builds the RPC handler and returns the path to mount
// it on.
func NewAFLTrackerHandler(s *TrackerServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{Codec()}, opts...)
	mux := http.NewServeMux()

	mux.Handle(CreateMatchProcedure, connect.NewUnaryHandler(CreateMatchProcedure, s.CreateMatch, opts...))
	mux.Handle(GetMatchProcedure, connect.NewUnaryHandler(GetMatchProcedure, s.GetMatch, opts...))
	mux.Handle(ListMatchesProcedure, connect.NewUnaryHandler(ListMatchesProcedure, s.ListMatches, opts...))
	mux.Handle(AddPlayerProcedure, connect.NewUnaryHandler(AddPlayerProcedure, s.AddPlayer, opts...))
	mux.Handle(UpdatePlayerProcedure, connect.NewUnaryHandler(UpdatePlayerProcedure, s.UpdatePlayer, opts...))
	mux.Handle(RemovePlayerProcedure, connect.NewUnaryHandler(RemovePlayerProcedure, s.RemovePlayer, opts...))
	mux.Handle(ListRosterProcedure, connect.NewUnaryHandler(ListRosterProcedure, s.ListRoster, opts...))
	mux.Handle(OpenQuarterProcedure, connect.NewUnaryHandler(OpenQuarterProcedure, s.OpenQuarter, opts...))
	mux.Handle(StartQuarterProcedure, connect.NewUnaryHandler(StartQuarterProcedure, s.StartQuarter, opts...))
	mux.Handle(PauseQuarterProcedure, connect.NewUnaryHandler(PauseQuarterProcedure, s.PauseQuarter, opts...))
	mux.Handle(StopQuarterProcedure, connect.NewUnaryHandler(StopQuarterProcedure, s.StopQuarter, opts...))
	mux.Handle(SelectActionProcedure, connect.NewUnaryHandler(SelectActionProcedure, s.SelectAction, opts...))
	mux.Handle(SelectPlayerProcedure, connect.NewUnaryHandler(SelectPlayerProcedure, s.SelectPlayer, opts...))
	mux.Handle(GetQuarterStateProcedure, connect.NewUnaryHandler(GetQuarterStateProcedure, s.GetQuarterState, opts...))
	mux.Handle(CloseQuarterProcedure, connect.NewUnaryHandler(CloseQuarterProcedure, s.CloseQuarter, opts...))
	mux.Handle(GetScoreboardProcedure, connect.NewUnaryHandler(GetScoreboardProcedure, s.GetScoreboard, opts...))
	mux.Handle(GetPlayerStatsProcedure, connect.NewUnaryHandler(GetPlayerStatsProcedure, s.GetPlayerStats, opts...))
	mux.Handle(ComparePlayersProcedure, connect.NewUnaryHandler(ComparePlayersProcedure, s.ComparePlayers, opts...))
	mux.Handle(GetTeamRankingsProcedure, connect.NewUnaryHandler(GetTeamRankingsProcedure, s.GetTeamRankings, opts...))
	mux.Handle(GetActionLogProcedure, connect.NewUnaryHandler(GetActionLogProcedure, s.GetActionLog, opts...))
	mux.Handle(ExportActionsProcedure, connect.NewUnaryHandler(ExportActionsProcedure, s.ExportActions, opts...))

	return AFLTrackerPath, mux
}
