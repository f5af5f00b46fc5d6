// Package gate decides which actions may be recorded at a given moment.
//
// Goal and Behind are deliberately asymmetric: a Goal needs the last action
// to be a Kick by the scoring team, while a Behind only needs the last action
// to be a Kick or Handball by either team.
package gate

import (
	"afl-tracker/internal/clock"
	"afl-tracker/internal/domain"
)

var base = domain.NewActionSet(
	domain.ActionKick,
	domain.ActionHandball,
	domain.ActionMark,
	domain.ActionTackle,
)

// Eligible returns the actions team may record now. last is nil when the
// match has no recorded actions yet.
func Eligible(state clock.State, last *domain.LastAction, team string) domain.ActionSet {
	if state != clock.Running {
		return 0
	}

	set := base
	if last == nil {
		return set
	}
	if last.Type == domain.ActionKick && last.Team == team {
		set = set.With(domain.ActionGoal)
	}
	if last.Type == domain.ActionKick || last.Type == domain.ActionHandball {
		set = set.With(domain.ActionBehind)
	}
	return set
}

// ForTeams evaluates Eligible for each team.
func ForTeams(state clock.State, last *domain.LastAction, teams ...string) map[string]domain.ActionSet {
	out := make(map[string]domain.ActionSet, len(teams))
	for _, team := range teams {
		out[team] = Eligible(state, last, team)
	}
	return out
}

// Check enforces Eligible at the point of recording.
func Check(state clock.State, last *domain.LastAction, action domain.ActionType, team string) error {
	if state != clock.Running {
		return domain.ErrGameNotRunning
	}
	if Eligible(state, last, team).Has(action) {
		return nil
	}
	return &domain.IllegalActionError{Action: action, Team: team, Reason: reason(action)}
}

func reason(action domain.ActionType) string {
	switch action {
	case domain.ActionGoal:
		return "a goal can only be scored after a kick by the same team"
	case domain.ActionBehind:
		return "a behind can only be scored after a kick or handball"
	}
	return "action cannot be recorded"
}
