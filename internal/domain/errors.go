package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoActionSelected = errors.New("no action selected")
	ErrGameNotRunning   = errors.New("game is not running")
	ErrCommitInFlight   = errors.New("an action is already being recorded")
	ErrUnknownTeam      = errors.New("player is not on either team")
	ErrNotFound         = errors.New("not found")
	ErrDuplicatePlayer  = errors.New("player number already taken for team")
	ErrInvalidInput     = errors.New("invalid input")
)

type IllegalActionError struct {
	Action ActionType
	Team   string
	Reason string
}

func (e *IllegalActionError) Error() string {
	if e.Team == "" {
		return fmt.Sprintf("%s not allowed: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("%s not allowed for %s: %s", e.Action, e.Team, e.Reason)
}

type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

type StoreReadError struct {
	Op  string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("store read %s: %v", e.Op, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// ParseError marks a stored record that is missing or has a malformed field.
type ParseError struct {
	RecordID string
	Field    string
	Value    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %s: invalid %s %q", e.RecordID, e.Field, e.Value)
}
