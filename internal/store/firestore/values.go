package firestore

import (
	"path"
	"strconv"
	"time"

	"afl-tracker/internal/domain"
)

// The app wrote timestamps as "yyyy-MM-dd HH:mm:ss" strings in the device's
// local time. New records use the same zone and add nanoseconds, so both
// layouts sort together lexicographically.
const (
	legacyTimestampLayout = "2006-01-02 15:04:05"
	timestampLayout       = "2006-01-02 15:04:05.000000000"
)

type value struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
}

type document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
}

func stringValue(s string) value {
	return value{StringValue: &s}
}

func integerValue(n int64) value {
	s := strconv.FormatInt(n, 10)
	return value{IntegerValue: &s}
}

func timestampValue(t time.Time) value {
	s := t.UTC().Format(time.RFC3339Nano)
	return value{TimestampValue: &s}
}

func (v value) str() string {
	if v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

func (v value) integer() int64 {
	switch {
	case v.IntegerValue != nil:
		n, _ := strconv.ParseInt(*v.IntegerValue, 10, 64)
		return n
	case v.DoubleValue != nil:
		return int64(*v.DoubleValue)
	}
	return 0
}

// timestamp accepts native timestamps and both string layouts, reading the
// strings in loc. Anything else yields the zero time and is rejected when
// the record is decoded.
func (v value) timestamp(loc *time.Location) time.Time {
	if v.TimestampValue != nil {
		t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
		if err == nil {
			return t
		}
		return time.Time{}
	}
	s := v.str()
	for _, layout := range []string{timestampLayout, legacyTimestampLayout, time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func docID(d document) string {
	return path.Base(d.Name)
}

func matchFromDocument(d document, loc *time.Location) *domain.Match {
	f := d.Fields
	return &domain.Match{
		ID:         docID(d),
		Name:       f["matchName"].str(),
		Venue:      f["venue"].str(),
		Date:       f["date"].str(),
		Time:       f["time"].str(),
		Team1Name:  f["team1Name"].str(),
		Team2Name:  f["team2Name"].str(),
		Team1Color: f["team1color"].str(),
		Team2Color: f["team2color"].str(),
		Team1Logo:  f["team1Logo"].str(),
		Team2Logo:  f["team2Logo"].str(),
		CreatedAt:  f["createdAt"].timestamp(loc),
	}
}

func matchFields(m domain.Match) map[string]value {
	return map[string]value{
		"matchName":  stringValue(m.Name),
		"venue":      stringValue(m.Venue),
		"date":       stringValue(m.Date),
		"time":       stringValue(m.Time),
		"team1Name":  stringValue(m.Team1Name),
		"team2Name":  stringValue(m.Team2Name),
		"team1color": stringValue(m.Team1Color),
		"team2color": stringValue(m.Team2Color),
		"team1Logo":  stringValue(m.Team1Logo),
		"team2Logo":  stringValue(m.Team2Logo),
		"createdAt":  timestampValue(m.CreatedAt),
	}
}

func recordFromDocument(d document, loc *time.Location) domain.ActionRecord {
	f := d.Fields
	return domain.ActionRecord{
		ID:                docID(d),
		MatchID:           f["matchId"].str(),
		ActionType:        f["actionType"].str(),
		PlayerRef:         f["playerRef"].str(),
		PlayerName:        f["playerName"].str(),
		PlayerNumber:      int(f["playerNumber"].integer()),
		Team:              f["team"].str(),
		Quarter:           f["quarter"].str(),
		GameTime:          f["gameTime"].integer(),
		GameTimeFormatted: f["gameTimeFormatted"].str(),
		Timestamp:         f["timestamp"].timestamp(loc),
	}
}

func recordFields(r domain.ActionRecord, loc *time.Location) map[string]value {
	return map[string]value{
		"matchId":           stringValue(r.MatchID),
		"actionType":        stringValue(r.ActionType),
		"playerRef":         stringValue(r.PlayerRef),
		"playerName":        stringValue(r.PlayerName),
		"playerNumber":      integerValue(int64(r.PlayerNumber)),
		"team":              stringValue(r.Team),
		"quarter":           stringValue(r.Quarter),
		"gameTime":          integerValue(r.GameTime),
		"gameTimeFormatted": stringValue(r.GameTimeFormatted),
		"timestamp":         stringValue(r.Timestamp.In(loc).Format(timestampLayout)),
	}
}
