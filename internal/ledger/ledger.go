package ledger

import (
	"sync"
	"time"

	"afl-tracker/internal/domain"
)

type scope struct {
	team    string
	quarter domain.Quarter // QuarterUnknown means every quarter
}

// Ledger is an append-only, in-memory action log with cached folds.
// Recording an action invalidates only the scopes it can affect.
type Ledger struct {
	mu      sync.RWMutex
	actions []domain.MatchAction
	seq     int64
	cache   map[scope]Score
}

func New(actions ...domain.MatchAction) *Ledger {
	l := &Ledger{cache: make(map[scope]Score)}
	for _, a := range Sorted(actions) {
		l.appendLocked(a)
	}
	return l
}

// Record appends an action. A timestamp that does not advance past the
// latest recorded one is bumped so "most recent" stays strictly ordered.
func (l *Ledger) Record(a domain.MatchAction) domain.MatchAction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.actions); n > 0 {
		latest := l.actions[n-1].Timestamp
		if !a.Timestamp.After(latest) {
			a.Timestamp = latest.Add(time.Nanosecond)
		}
	}
	a = l.appendLocked(a)

	for _, sc := range []scope{
		{team: a.Team, quarter: a.Quarter},
		{team: a.Team},
		{quarter: a.Quarter},
		{},
	} {
		delete(l.cache, sc)
	}
	return a
}

// Merge folds in actions that were recorded elsewhere, ignoring ids the
// ledger already holds. Existing timestamps are kept as-is.
func (l *Ledger) Merge(actions []domain.MatchAction) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	known := make(map[string]struct{}, len(l.actions))
	for _, a := range l.actions {
		if a.ID != "" {
			known[a.ID] = struct{}{}
		}
	}

	added := 0
	for _, a := range Sorted(actions) {
		if _, ok := known[a.ID]; ok && a.ID != "" {
			continue
		}
		l.appendLocked(a)
		added++
	}
	if added > 0 {
		l.actions = Sorted(l.actions)
		l.cache = make(map[scope]Score)
	}
	return added
}

func (l *Ledger) appendLocked(a domain.MatchAction) domain.MatchAction {
	l.seq++
	if a.Seq == 0 {
		a.Seq = l.seq
	} else if a.Seq > l.seq {
		l.seq = a.Seq
	}
	l.actions = append(l.actions, a)
	return a
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actions)
}

// Actions returns a copy in ledger order.
func (l *Ledger) Actions() []domain.MatchAction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.MatchAction, len(l.actions))
	copy(out, l.actions)
	return out
}

func (l *Ledger) LastAction() (domain.LastAction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LastAction(l.actions)
}

// Score returns the fold for a team (empty for both teams) and quarter
// (QuarterUnknown for the whole match).
func (l *Ledger) Score(team string, q domain.Quarter) Score {
	sc := scope{team: team, quarter: q}

	l.mu.RLock()
	s, ok := l.cache[sc]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.cache[sc]; ok {
		return s
	}
	s = fold(l.actions, func(a domain.MatchAction) bool {
		return (team == "" || a.Team == team) && (q == domain.QuarterUnknown || a.Quarter == q)
	})
	l.cache[sc] = s
	return s
}

func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.actions) - 1; i >= 0; i-- {
		if l.actions[i].ID == id {
			return true
		}
	}
	return false
}
