package domain

import (
	"time"
)

type Match struct {
	ID         string
	Name       string
	Venue      string
	Date       string
	Time       string
	Team1Name  string
	Team2Name  string
	Team1Color string // "#RRGGBB"
	Team2Color string
	Team1Logo  string // base64, opaque
	Team2Logo  string
	CreatedAt  time.Time
}

// Teams returns the two team names in roster order.
func (m *Match) Teams() []string {
	return []string{m.Team1Name, m.Team2Name}
}

func (m *Match) HasTeam(team string) bool {
	return team != "" && (team == m.Team1Name || team == m.Team2Name)
}

type Player struct {
	ID        string
	MatchID   string
	TeamName  string
	Number    int
	Name      string
	Position  string
	Age       int
	Height    int // cm
	Image     string
	CreatedAt time.Time
}

type MatchAction struct {
	ID                string
	MatchID           string
	Type              ActionType
	PlayerRef         string
	PlayerName        string
	PlayerNumber      int
	Team              string
	Quarter           Quarter
	GameTime          int64 // ms into the quarter
	GameTimeFormatted string
	Timestamp         time.Time

	// insertion order, tiebreak for equal timestamps
	Seq int64
}

// LastAction is the most recently recorded action of a match.
type LastAction struct {
	Type ActionType `json:"type"`
	Team string     `json:"team"`
}

// Before reports whether a sorts strictly before b in ledger order.
func (a MatchAction) Before(b MatchAction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}
