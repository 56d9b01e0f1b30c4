package api

import (
	"errors"
	"fmt"
)

// Kinds. Match with errors.Is.
var (
	ErrUnavailable  = errors.New("service unavailable")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("not authorized")
	ErrInvalid      = errors.New("rejected by server")
)

// Conflict identifies which conflict the server reported.
type Conflict string

const (
	ConflictDuplicateSettlement Conflict = "DUPLICATE_SETTLEMENT"
	ConflictVoteClosed          Conflict = "VOTE_CLOSED"
	ConflictVoteExists          Conflict = "VOTE_EXISTS"
)

// Remediation is the follow-up action offered to the user.
func (c Conflict) Remediation() string {
	switch c {
	case ConflictDuplicateSettlement:
		return "view existing settlement"
	case ConflictVoteClosed:
		return "view settlement"
	case ConflictVoteExists:
		return "open vote"
	default:
		return ""
	}
}

// Error is what every port implementation returns for a failed call.
type Error struct {
	Op       string
	Kind     error
	Status   int
	Conflict Conflict
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind.
func NewError(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

// NewConflict builds a conflict error carrying its remediation.
func NewConflict(op string, c Conflict, msg string) *Error {
	return &Error{Op: op, Kind: ErrConflict, Conflict: c, Message: msg}
}

// ConflictOf returns the conflict reported by err, if any.
func ConflictOf(err error) (Conflict, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == ErrConflict {
		return apiErr.Conflict, true
	}
	return "", false
}

// Retryable reports whether repeating the call could succeed.
// Authorization, conflict and validation failures never are.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
