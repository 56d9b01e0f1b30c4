package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      error
		retryable bool
	}{
		{"network", &Error{Op: "get group", Kind: ErrUnavailable, Err: errors.New("dial tcp: refused")}, ErrUnavailable, true},
		{"conflict", NewConflict("create settlement", ConflictDuplicateSettlement, "exists"), ErrConflict, false},
		{"forbidden", NewError("delete vote", ErrUnauthorized, "only the payer may delete"), ErrUnauthorized, false},
		{"wrapped", fmt.Errorf("refresh: %w", NewError("get expense", ErrNotFound, "")), ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Fatalf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if Retryable(tt.err) != tt.retryable {
				t.Fatalf("Retryable = %v, want %v", Retryable(tt.err), tt.retryable)
			}
		})
	}
}

func TestConflictOf(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewConflict("close vote", ConflictVoteClosed, "already closed"))
	c, ok := ConflictOf(err)
	if !ok || c != ConflictVoteClosed {
		t.Fatalf("ConflictOf = %q, %v", c, ok)
	}
	if c.Remediation() == "" {
		t.Fatal("expected a remediation for vote closed")
	}
	if _, ok := ConflictOf(NewError("x", ErrUnavailable, "")); ok {
		t.Fatal("non-conflict error reported as conflict")
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: "get group", Kind: ErrNotFound, Status: 404}
	if got, want := err.Error(), "get group: not found (status 404)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
