// Package ledger folds recorded match actions into scores and statistics.
//
// Every function here is pure: the same action set always yields the same
// result, and apart from LastAction the order of the input does not matter.
package ledger

import (
	"fmt"
	"sort"

	"afl-tracker/internal/domain"
)

const (
	PointsPerGoal   = 6
	PointsPerBehind = 1
)

// Score counts actions for one scope: a quarter, a team, or a whole match.
type Score struct {
	Goals     int `json:"goals"`
	Behinds   int `json:"behinds"`
	Kicks     int `json:"kicks"`
	Handballs int `json:"handballs"`
	Marks     int `json:"marks"`
	Tackles   int `json:"tackles"`
}

func (s Score) TotalPoints() int {
	return s.Goals*PointsPerGoal + s.Behinds*PointsPerBehind
}

func (s Score) Disposals() int {
	return s.Kicks + s.Handballs
}

// String renders AFL notation: goals.behinds.total.
func (s Score) String() string {
	return fmt.Sprintf("%d.%d.%d", s.Goals, s.Behinds, s.TotalPoints())
}

func (s Score) Add(o Score) Score {
	return Score{
		Goals:     s.Goals + o.Goals,
		Behinds:   s.Behinds + o.Behinds,
		Kicks:     s.Kicks + o.Kicks,
		Handballs: s.Handballs + o.Handballs,
		Marks:     s.Marks + o.Marks,
		Tackles:   s.Tackles + o.Tackles,
	}
}

func (s *Score) count(t domain.ActionType) {
	switch t {
	case domain.ActionGoal:
		s.Goals++
	case domain.ActionBehind:
		s.Behinds++
	case domain.ActionKick:
		s.Kicks++
	case domain.ActionHandball:
		s.Handballs++
	case domain.ActionMark:
		s.Marks++
	case domain.ActionTackle:
		s.Tackles++
	case domain.ActionDisposal, domain.ActionUnknown:
		// legacy disposal records carry no kick/handball split
	}
}

func fold(actions []domain.MatchAction, keep func(domain.MatchAction) bool) Score {
	var s Score
	for _, a := range actions {
		if keep == nil || keep(a) {
			s.count(a.Type)
		}
	}
	return s
}

// QuarterlyScores folds the actions recorded in one quarter.
func QuarterlyScores(actions []domain.MatchAction, q domain.Quarter) Score {
	return fold(actions, func(a domain.MatchAction) bool { return a.Quarter == q })
}

// QuarterBreakdown folds every canonical quarter at once.
func QuarterBreakdown(actions []domain.MatchAction) map[domain.Quarter]Score {
	out := make(map[domain.Quarter]Score, len(domain.Quarters))
	for _, q := range domain.Quarters {
		out[q] = Score{}
	}
	for _, a := range actions {
		if !a.Quarter.Valid() {
			continue
		}
		s := out[a.Quarter]
		s.count(a.Type)
		out[a.Quarter] = s
	}
	return out
}

// TotalScores folds the full action set regardless of quarter.
func TotalScores(actions []domain.MatchAction) Score {
	return fold(actions, nil)
}

func TotalDisposals(actions []domain.MatchAction) int {
	return TotalScores(actions).Disposals()
}

func TotalMarks(actions []domain.MatchAction) int {
	return countType(actions, domain.ActionMark)
}

func TotalTackles(actions []domain.MatchAction) int {
	return countType(actions, domain.ActionTackle)
}

func countType(actions []domain.MatchAction, t domain.ActionType) int {
	n := 0
	for _, a := range actions {
		if a.Type == t {
			n++
		}
	}
	return n
}

func ForTeam(actions []domain.MatchAction, team string) []domain.MatchAction {
	var out []domain.MatchAction
	for _, a := range actions {
		if a.Team == team {
			out = append(out, a)
		}
	}
	return out
}

func ForQuarter(actions []domain.MatchAction, q domain.Quarter) []domain.MatchAction {
	var out []domain.MatchAction
	for _, a := range actions {
		if a.Quarter == q {
			out = append(out, a)
		}
	}
	return out
}

func ForPlayer(actions []domain.MatchAction, team string, number int) []domain.MatchAction {
	var out []domain.MatchAction
	for _, a := range actions {
		if a.Team == team && a.PlayerNumber == number {
			out = append(out, a)
		}
	}
	return out
}

// LastAction returns the most recent action by timestamp, breaking ties by
// insertion order.
func LastAction(actions []domain.MatchAction) (domain.LastAction, bool) {
	if len(actions) == 0 {
		return domain.LastAction{}, false
	}
	latest := actions[0]
	for _, a := range actions[1:] {
		if latest.Before(a) {
			latest = a
		}
	}
	return domain.LastAction{Type: latest.Type, Team: latest.Team}, true
}

// Sorted returns a copy of actions in ledger order, oldest first.
func Sorted(actions []domain.MatchAction) []domain.MatchAction {
	out := make([]domain.MatchAction, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Decode converts stored records, skipping any that fail to parse.
func Decode(records []domain.ActionRecord) ([]domain.MatchAction, []error) {
	actions := make([]domain.MatchAction, 0, len(records))
	var skipped []error
	for _, r := range records {
		a, err := r.Decode()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		actions = append(actions, a)
	}
	return actions, skipped
}
