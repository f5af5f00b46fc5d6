package server

import (
	"time"

	"afl-tracker/internal/domain"
	"afl-tracker/internal/ledger"
	"afl-tracker/internal/session"
)

type Empty struct{}

type Match struct {
	ID         string    `json:"id"`
	Name       string    `json:"matchName"`
	Venue      string    `json:"venue"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Team1Name  string    `json:"team1Name"`
	Team2Name  string    `json:"team2Name"`
	Team1Color string    `json:"team1Color,omitempty"`
	Team2Color string    `json:"team2Color,omitempty"`
	Team1Logo  string    `json:"team1Logo,omitempty"`
	Team2Logo  string    `json:"team2Logo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Player struct {
	ID       string `json:"id"`
	MatchID  string `json:"matchId"`
	Team     string `json:"teamName"`
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Age      int    `json:"age,omitempty"`
	Height   int    `json:"height,omitempty"`
	Image    string `json:"image,omitempty"`
}

type Action struct {
	ID                string            `json:"id"`
	Type              domain.ActionType `json:"actionType"`
	PlayerID          string            `json:"playerId,omitempty"`
	PlayerName        string            `json:"playerName"`
	PlayerNumber      int               `json:"playerNumber"`
	Team              string            `json:"team"`
	Quarter           domain.Quarter    `json:"quarter"`
	GameTime          int64             `json:"gameTime"`
	GameTimeFormatted string            `json:"gameTimeFormatted"`
	Timestamp         time.Time         `json:"timestamp"`
}

type CreateMatchRequest struct {
	Name       string `json:"matchName"`
	Venue      string `json:"venue"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Team1Name  string `json:"team1Name"`
	Team2Name  string `json:"team2Name"`
	Team1Color string `json:"team1Color"`
	Team2Color string `json:"team2Color"`
	Team1Logo  string `json:"team1Logo"`
	Team2Logo  string `json:"team2Logo"`
}

type MatchRequest struct {
	MatchID string `json:"matchId"`
}

type ListMatchesRequest struct {
	Query string `json:"query"`
}

type ListMatchesResponse struct {
	Matches []Match `json:"matches"`
}

type AddPlayerRequest struct {
	MatchID  string `json:"matchId"`
	Team     string `json:"teamName"`
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Age      int    `json:"age"`
	Height   int    `json:"height"`
	Image    string `json:"image"`
}

// UpdatePlayerRequest replaces every detail of a rostered player.
type UpdatePlayerRequest struct {
	PlayerID string `json:"playerId"`
	AddPlayerRequest
}

type RemovePlayerRequest struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

type ListRosterRequest struct {
	MatchID string `json:"matchId"`
	Team    string `json:"teamName"`
}

type ListRosterResponse struct {
	Players []Player `json:"players"`
}

type QuarterRequest struct {
	MatchID string         `json:"matchId"`
	Quarter domain.Quarter `json:"quarter"`
}

type ClockResponse struct {
	Clock *session.ClockView `json:"clock"`
}

type SelectActionRequest struct {
	MatchID string            `json:"matchId"`
	Quarter domain.Quarter    `json:"quarter"`
	Action  domain.ActionType `json:"action"`
}

// SelectPlayerRequest names the player either by roster id or by team and
// number.
type SelectPlayerRequest struct {
	MatchID  string         `json:"matchId"`
	Quarter  domain.Quarter `json:"quarter"`
	PlayerID string         `json:"playerId,omitempty"`
	Team     string         `json:"team,omitempty"`
	Number   int            `json:"number,omitempty"`
	Name     string         `json:"name,omitempty"`
}

type SelectPlayerResponse struct {
	Action Action        `json:"action"`
	State  session.State `json:"state"`
}

type PlayerStatsResponse struct {
	Players []ledger.PlayerStat `json:"players"`
}

type PlayerRef struct {
	Team   string `json:"team"`
	Number int    `json:"number"`
}

type ComparePlayersRequest struct {
	MatchID string    `json:"matchId"`
	First   PlayerRef `json:"first"`
	Second  PlayerRef `json:"second"`
}

type TeamRankingsResponse struct {
	Rankings []ledger.TeamRank `json:"rankings"`
}

// ActionLogRequest lists every quarter when Quarter is empty.
type ActionLogRequest struct {
	MatchID string `json:"matchId"`
	Quarter string `json:"quarter,omitempty"`
}

type ActionLogResponse struct {
	Actions []Action `json:"actions"`
}

func toMatch(m *domain.Match) Match {
	return Match{
		ID:         m.ID,
		Name:       m.Name,
		Venue:      m.Venue,
		Date:       m.Date,
		Time:       m.Time,
		Team1Name:  m.Team1Name,
		Team2Name:  m.Team2Name,
		Team1Color: m.Team1Color,
		Team2Color: m.Team2Color,
		Team1Logo:  m.Team1Logo,
		Team2Logo:  m.Team2Logo,
		CreatedAt:  m.CreatedAt,
	}
}

func toPlayer(p *domain.Player) Player {
	return Player{
		ID:       p.ID,
		MatchID:  p.MatchID,
		Team:     p.TeamName,
		Number:   p.Number,
		Name:     p.Name,
		Position: p.Position,
		Age:      p.Age,
		Height:   p.Height,
		Image:    p.Image,
	}
}

func toAction(a *domain.MatchAction) Action {
	return Action{
		ID:                a.ID,
		Type:              a.Type,
		PlayerID:          a.PlayerRef,
		PlayerName:        a.PlayerName,
		PlayerNumber:      a.PlayerNumber,
		Team:              a.Team,
		Quarter:           a.Quarter,
		GameTime:          a.GameTime,
		GameTimeFormatted: a.GameTimeFormatted,
		Timestamp:         a.Timestamp,
	}
}

func toActions(actions []domain.MatchAction) []Action {
	out := make([]Action, 0, len(actions))
	for i := range actions {
		out = append(out, toAction(&actions[i]))
	}
	return out
}
