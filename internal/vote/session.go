package vote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"nbbang/internal/core"
)

var (
	ErrResyncRequired = errors.New("vote status must be reloaded before editing")
	ErrClosed         = errors.New("vote is closed")
	ErrUnknownOption  = errors.New("unknown vote option")
)

// Toggler flips one user's membership in one option on the server.
type Toggler interface {
	ToggleVote(ctx context.Context, userID, optionID string) error
}

// PartialSubmitError is returned when a toggle fails mid-batch. Applied
// toggles stay applied on the server; nothing is rolled back.
type PartialSubmitError struct {
	Applied []string
	Failed  string
	Err     error
}

func (e *PartialSubmitError) Error() string {
	return fmt.Sprintf("toggle option %s failed after %d applied: %v", e.Failed, len(e.Applied), e.Err)
}

func (e *PartialSubmitError) Unwrap() error { return e.Err }

// Session is one user's edit of one vote. The original selection is captured
// when the vote status is loaded and only moves on a successful Submit or an
// explicit Resync.
type Session struct {
	ExpenseID string
	UserID    string

	mu       sync.Mutex
	options  map[string]struct{}
	original []string
	current  map[string]struct{}
	closed   bool
	stale    bool
}

// NewSession captures userID's current selection in v as the original.
func NewSession(v core.Vote, userID string) *Session {
	s := &Session{ExpenseID: v.ExpenseID, UserID: userID}
	s.load(v)
	return s
}

func (s *Session) load(v core.Vote) {
	s.options = make(map[string]struct{}, len(v.Options))
	for _, o := range v.Options {
		s.options[o.ID] = struct{}{}
	}
	s.original = v.SelectedBy(s.UserID)
	s.closed = v.Closed
	s.stale = false
}

// Set checks or unchecks an option locally.
func (s *Session) Set(optionID string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(optionID, func(bool) bool { return selected })
}

// Toggle flips an option locally.
func (s *Session) Toggle(optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(optionID, func(on bool) bool { return !on })
}

// setLocked must be called with s.mu held. next maps the option's current
// state to its new one.
func (s *Session) setLocked(optionID string, next func(on bool) bool) error {
	if err := s.editable(); err != nil {
		return err
	}
	if _, ok := s.options[optionID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
	}
	if s.current == nil {
		s.current = toSet(s.original)
	}
	_, on := s.current[optionID]
	if next(on) {
		s.current[optionID] = struct{}{}
	} else {
		delete(s.current, optionID)
	}
	return nil
}

func (s *Session) editable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.stale:
		return ErrResyncRequired
	}
	return nil
}

func (s *Session) selection() map[string]struct{} {
	if s.current == nil {
		return toSet(s.original)
	}
	return s.current
}

// Selected returns the locally selected option ids, sorted.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selection()))
	for id := range s.selection() {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Original returns the selection the server is believed to hold.
func (s *Session) Original() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.original)
}

// Pending returns the toggles a Submit would send.
func (s *Session) Pending() Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending()
}

func (s *Session) pending() Delta {
	if s.current == nil {
		return Delta{}
	}
	cur := make([]string, 0, len(s.current))
	for id := range s.current {
		cur = append(cur, id)
	}
	return Reconcile(s.original, cur)
}

// MarkStale blocks editing until Resync, for when the user's votes changed
// elsewhere.
func (s *Session) MarkStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Submit sends one toggle per changed option, in order, stopping at the
// first failure. On success the original becomes the submitted selection.
// On failure the session is marked stale until Resync.
func (s *Session) Submit(ctx context.Context, t Toggler) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return Delta{}, err
	}

	delta := s.pending()
	toggles := delta.Toggles()
	for i, id := range toggles {
		if err := t.ToggleVote(ctx, s.UserID, id); err != nil {
			s.stale = true
			return delta, &PartialSubmitError{
				Applied: slices.Clone(toggles[:i]),
				Failed:  id,
				Err:     err,
			}
		}
	}

	if s.current != nil {
		s.original = s.original[:0]
		for id := range s.current {
			s.original = append(s.original, id)
		}
		slices.Sort(s.original)
	}
	s.current = nil
	return delta, nil
}

// Resync re-captures the original from freshly loaded vote status. The local
// selection is kept so the user can resubmit what is still missing.
func (s *Session) Resync(v core.Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(v)
	if s.current != nil {
		for id := range s.current {
			if _, ok := s.options[id]; !ok {
				delete(s.current, id)
			}
		}
	}
}
