package domain

import (
	"time"
)

// ActionRecord is an action as it sits in the store, before validation.
type ActionRecord struct {
	ID                string    `json:"id,omitempty"`
	MatchID           string    `json:"matchId"`
	ActionType        string    `json:"actionType"`
	PlayerRef         string    `json:"playerRef"`
	PlayerName        string    `json:"playerName"`
	PlayerNumber      int       `json:"playerNumber"`
	Team              string    `json:"team"`
	Quarter           string    `json:"quarter"`
	GameTime          int64     `json:"gameTime"`
	GameTimeFormatted string    `json:"gameTimeFormatted"`
	Timestamp         time.Time `json:"timestamp"`
	Seq               int64     `json:"-"`
}

func (r ActionRecord) Decode() (MatchAction, error) {
	t, err := ParseActionType(r.ActionType)
	if err != nil {
		return MatchAction{}, &ParseError{RecordID: r.ID, Field: "actionType", Value: r.ActionType}
	}
	if r.Team == "" {
		return MatchAction{}, &ParseError{RecordID: r.ID, Field: "team"}
	}
	q, err := ParseQuarter(r.Quarter)
	if err != nil {
		return MatchAction{}, &ParseError{RecordID: r.ID, Field: "quarter", Value: r.Quarter}
	}
	if r.Timestamp.IsZero() {
		return MatchAction{}, &ParseError{RecordID: r.ID, Field: "timestamp"}
	}
	return MatchAction{
		ID:                r.ID,
		MatchID:           r.MatchID,
		Type:              t,
		PlayerRef:         r.PlayerRef,
		PlayerName:        r.PlayerName,
		PlayerNumber:      r.PlayerNumber,
		Team:              r.Team,
		Quarter:           q,
		GameTime:          r.GameTime,
		GameTimeFormatted: r.GameTimeFormatted,
		Timestamp:         r.Timestamp,
		Seq:               r.Seq,
	}, nil
}

func (a MatchAction) Record() ActionRecord {
	return ActionRecord{
		ID:                a.ID,
		MatchID:           a.MatchID,
		ActionType:        a.Type.String(),
		PlayerRef:         a.PlayerRef,
		PlayerName:        a.PlayerName,
		PlayerNumber:      a.PlayerNumber,
		Team:              a.Team,
		Quarter:           a.Quarter.String(),
		GameTime:          a.GameTime,
		GameTimeFormatted: a.GameTimeFormatted,
		Timestamp:         a.Timestamp,
		Seq:               a.Seq,
	}
}
