package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ActionType uint8

const (
	ActionUnknown ActionType = iota
	ActionKick
	ActionHandball
	ActionMark
	ActionTackle
	ActionGoal
	ActionBehind
	// Disposal only appears in legacy records; it is never eligible for recording.
	ActionDisposal
)

var actionNames = [...]string{
	ActionUnknown:  "",
	ActionKick:     "Kick",
	ActionHandball: "Handball",
	ActionMark:     "Mark",
	ActionTackle:   "Tackle",
	ActionGoal:     "Goal",
	ActionBehind:   "Behind",
	ActionDisposal: "Disposal",
}

// RecordableActions lists the actions a session can commit, in button order.
var RecordableActions = []ActionType{
	ActionKick, ActionHandball, ActionMark, ActionTackle, ActionGoal, ActionBehind,
}

func (a ActionType) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("ActionType(%d)", uint8(a))
}

func (a ActionType) Valid() bool {
	return a > ActionUnknown && a <= ActionDisposal
}

func (a ActionType) Recordable() bool {
	return a >= ActionKick && a <= ActionBehind
}

// ParseActionType accepts the stored names case-insensitively.
func ParseActionType(s string) (ActionType, error) {
	s = strings.TrimSpace(s)
	for i, name := range actionNames {
		if i == 0 {
			continue
		}
		if strings.EqualFold(name, s) {
			return ActionType(i), nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown action type %q", s)
}

func (a ActionType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ActionType) UnmarshalText(b []byte) error {
	t, err := ParseActionType(string(b))
	if err != nil {
		return err
	}
	*a = t
	return nil
}

// ActionSet is a bit set of action types.
type ActionSet uint16

func NewActionSet(types ...ActionType) ActionSet {
	var s ActionSet
	for _, t := range types {
		s = s.With(t)
	}
	return s
}

func (s ActionSet) With(t ActionType) ActionSet {
	return s | 1<<t
}

func (s ActionSet) Has(t ActionType) bool {
	return s&(1<<t) != 0
}

func (s ActionSet) Empty() bool {
	return s == 0
}

// Types returns the members in declaration order.
func (s ActionSet) Types() []ActionType {
	var out []ActionType
	for t := ActionKick; t <= ActionDisposal; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s ActionSet) MarshalJSON() ([]byte, error) {
	types := s.Types()
	var b strings.Builder
	b.WriteByte('[')
	for i, t := range types {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q", t.String())
	}
	b.WriteByte(']')
	return []byte(b.String()), nil
}

func (s *ActionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set ActionSet
	for _, name := range names {
		t, err := ParseActionType(name)
		if err != nil {
			return err
		}
		set = set.With(t)
	}
	*s = set
	return nil
}

type Quarter uint8

const (
	QuarterUnknown Quarter = iota
	Quarter1
	Quarter2
	Quarter3
	Quarter4
)

var Quarters = []Quarter{Quarter1, Quarter2, Quarter3, Quarter4}

func (q Quarter) String() string {
	if q < Quarter1 || q > Quarter4 {
		return ""
	}
	return fmt.Sprintf("Quarter %d", q)
}

func (q Quarter) Valid() bool {
	return q >= Quarter1 && q <= Quarter4
}

// ParseQuarter accepts "Quarter 1".."Quarter 4" and the short "Q1".."Q4".
func ParseQuarter(s string) (Quarter, error) {
	s = strings.TrimSpace(s)
	for _, q := range Quarters {
		if strings.EqualFold(s, q.String()) || strings.EqualFold(s, fmt.Sprintf("Q%d", q)) {
			return q, nil
		}
	}
	return QuarterUnknown, fmt.Errorf("unknown quarter %q", s)
}

func (q Quarter) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText maps an empty string to QuarterUnknown, mirroring
// MarshalText.
func (q *Quarter) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*q = QuarterUnknown
		return nil
	}
	parsed, err := ParseQuarter(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
