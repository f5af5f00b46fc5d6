package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseActionType(t *testing.T) {
	tests := []struct {
		in      string
		want    ActionType
		wantErr bool
	}{
		{in: "Kick", want: ActionKick},
		{in: "goal", want: ActionGoal},
		{in: " Behind ", want: ActionBehind},
		{in: "Disposal", want: ActionDisposal},
		{in: "", wantErr: true},
		{in: "Spoil", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseActionType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseActionType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseActionType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseQuarter(t *testing.T) {
	for _, in := range []string{"Quarter 3", "quarter 3", "Q3"} {
		got, err := ParseQuarter(in)
		if err != nil || got != Quarter3 {
			t.Fatalf("ParseQuarter(%q) = %v, %v, want Quarter 3", in, got, err)
		}
	}
	if _, err := ParseQuarter("Quarter 5"); err == nil {
		t.Fatalf("expected error for Quarter 5")
	}
}

func TestActionSet(t *testing.T) {
	s := NewActionSet(ActionKick, ActionGoal)
	if !s.Has(ActionKick) || !s.Has(ActionGoal) || s.Has(ActionBehind) {
		t.Fatalf("unexpected membership: %v", s.Types())
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `["Kick","Goal"]` {
		t.Fatalf("json = %s, want [\"Kick\",\"Goal\"]", b)
	}

	if !ActionSet(0).Empty() {
		t.Fatalf("zero set should be empty")
	}
}

func TestActionRecordDecode(t *testing.T) {
	ts := time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)
	good := ActionRecord{
		ID:         "a1",
		ActionType: "Kick",
		Team:       "Hawks",
		Quarter:    "Quarter 2",
		GameTime:   61000,
		Timestamp:  ts,
	}

	got, err := good.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Type != ActionKick || got.Quarter != Quarter2 || got.Team != "Hawks" {
		t.Fatalf("Decode() = %+v", got)
	}

	tests := []struct {
		name  string
		edit  func(*ActionRecord)
		field string
	}{
		{name: "unknown type", edit: func(r *ActionRecord) { r.ActionType = "Smother" }, field: "actionType"},
		{name: "missing team", edit: func(r *ActionRecord) { r.Team = "" }, field: "team"},
		{name: "bad quarter", edit: func(r *ActionRecord) { r.Quarter = "Overtime" }, field: "quarter"},
		{name: "zero timestamp", edit: func(r *ActionRecord) { r.Timestamp = time.Time{} }, field: "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := good
			tt.edit(&rec)
			_, err := rec.Decode()
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Decode() error = %v, want *ParseError", err)
			}
			if perr.Field != tt.field {
				t.Fatalf("ParseError.Field = %q, want %q", perr.Field, tt.field)
			}
		})
	}
}
