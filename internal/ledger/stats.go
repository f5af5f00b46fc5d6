package ledger

import (
	"fmt"
	"sort"

	"afl-tracker/internal/domain"
)

type PlayerStat struct {
	PlayerID string `json:"playerId,omitempty"`
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	Score
	Disposals int `json:"disposals"`
}

// PlayerStats folds actions per roster entry. Players without actions are
// included with zero counts; actions by numbers missing from the roster are
// reported under the recorded name.
func PlayerStats(actions []domain.MatchAction, roster []domain.Player) []PlayerStat {
	type key struct {
		team   string
		number int
	}

	index := make(map[key]int, len(roster))
	stats := make([]PlayerStat, 0, len(roster))
	for _, p := range roster {
		k := key{p.TeamName, p.Number}
		if _, dup := index[k]; dup {
			continue
		}
		index[k] = len(stats)
		stats = append(stats, PlayerStat{PlayerID: p.ID, Number: p.Number, Name: p.Name, Team: p.TeamName})
	}

	for _, a := range actions {
		k := key{a.Team, a.PlayerNumber}
		i, ok := index[k]
		if !ok {
			i = len(stats)
			index[k] = i
			stats = append(stats, PlayerStat{Number: a.PlayerNumber, Name: a.PlayerName, Team: a.Team})
		}
		stats[i].Score.count(a.Type)
	}

	for i := range stats {
		stats[i].Disposals = stats[i].Score.Disposals()
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Team != stats[j].Team {
			return stats[i].Team < stats[j].Team
		}
		return stats[i].Number < stats[j].Number
	})
	return stats
}

type Leader int

const (
	Tied Leader = iota
	First
	Second
)

func (l Leader) String() string {
	switch l {
	case First:
		return "first"
	case Second:
		return "second"
	}
	return "tied"
}

func (l Leader) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Leader) UnmarshalText(b []byte) error {
	switch string(b) {
	case "first":
		*l = First
	case "second":
		*l = Second
	case "tied":
		*l = Tied
	default:
		return fmt.Errorf("unknown leader %q", b)
	}
	return nil
}

// Comparison names the leader for each statistic of a head-to-head.
type Comparison struct {
	First      PlayerStat        `json:"first"`
	Second     PlayerStat        `json:"second"`
	Leaders    map[string]Leader `json:"leaders"`
	FirstWins  int               `json:"firstWins"`
	SecondWins int               `json:"secondWins"`
}

func Compare(a, b PlayerStat) Comparison {
	values := []struct {
		name string
		a, b int
	}{
		{"goals", a.Goals, b.Goals},
		{"behinds", a.Behinds, b.Behinds},
		{"kicks", a.Kicks, b.Kicks},
		{"handballs", a.Handballs, b.Handballs},
		{"disposals", a.Disposals, b.Disposals},
		{"marks", a.Marks, b.Marks},
		{"tackles", a.Tackles, b.Tackles},
	}

	c := Comparison{First: a, Second: b, Leaders: make(map[string]Leader, len(values))}
	for _, v := range values {
		switch {
		case v.a > v.b:
			c.Leaders[v.name] = First
			c.FirstWins++
		case v.b > v.a:
			c.Leaders[v.name] = Second
			c.SecondWins++
		default:
			c.Leaders[v.name] = Tied
		}
	}
	return c
}

type TeamRank struct {
	Rank    int    `json:"rank"`
	Team    string `json:"team"`
	Goals   int    `json:"goals"`
	Behinds int    `json:"behinds"`
	Points  int    `json:"points"`
}

// TeamRankings ranks every team that appears in actions by points, highest
// first. Equal points share a rank and are ordered by name.
func TeamRankings(actions []domain.MatchAction) []TeamRank {
	byTeam := make(map[string]Score)
	for _, a := range actions {
		s := byTeam[a.Team]
		s.count(a.Type)
		byTeam[a.Team] = s
	}

	ranks := make([]TeamRank, 0, len(byTeam))
	for team, s := range byTeam {
		ranks = append(ranks, TeamRank{Team: team, Goals: s.Goals, Behinds: s.Behinds, Points: s.TotalPoints()})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Points != ranks[j].Points {
			return ranks[i].Points > ranks[j].Points
		}
		return ranks[i].Team < ranks[j].Team
	})

	for i := range ranks {
		if i > 0 && ranks[i].Points == ranks[i-1].Points {
			ranks[i].Rank = ranks[i-1].Rank
		} else {
			ranks[i].Rank = i + 1
		}
	}
	return ranks
}

type TeamScore struct {
	Team      string                   `json:"team"`
	Color     string                   `json:"color,omitempty"`
	Quarters  map[domain.Quarter]Score `json:"quarters"`
	Total     Score                    `json:"total"`
	Points    int                      `json:"points"`
	Disposals int                      `json:"disposals"`
	Marks     int                      `json:"marks"`
	Tackles   int                      `json:"tackles"`
}

type Scoreboard struct {
	MatchID string    `json:"matchId"`
	Home    TeamScore `json:"home"`
	Away    TeamScore `json:"away"`
	// Leader is empty when scores are level.
	Leader string `json:"leader,omitempty"`
	Margin int    `json:"margin"`
}

func BuildScoreboard(match *domain.Match, actions []domain.MatchAction) Scoreboard {
	home := teamScore(match.Team1Name, match.Team1Color, ForTeam(actions, match.Team1Name))
	away := teamScore(match.Team2Name, match.Team2Color, ForTeam(actions, match.Team2Name))

	sb := Scoreboard{MatchID: match.ID, Home: home, Away: away}
	switch {
	case home.Points > away.Points:
		sb.Leader = home.Team
		sb.Margin = home.Points - away.Points
	case away.Points > home.Points:
		sb.Leader = away.Team
		sb.Margin = away.Points - home.Points
	}
	return sb
}

func teamScore(team, color string, actions []domain.MatchAction) TeamScore {
	total := TotalScores(actions)
	return TeamScore{
		Team:      team,
		Color:     color,
		Quarters:  QuarterBreakdown(actions),
		Total:     total,
		Points:    total.TotalPoints(),
		Disposals: total.Disposals(),
		Marks:     total.Marks,
		Tackles:   total.Tackles,
	}
}
