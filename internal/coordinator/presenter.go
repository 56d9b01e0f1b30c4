package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"nbbang/internal/api"
)

// Severity of a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-facing message about a failed action. Action names the
// follow-up the UI should offer, if any.
type Notice struct {
	Title    string
	Message  string
	Severity Severity
	Action   string
	Retry    bool
	Err      error
}

// Presenter shows notices to the user.
type Presenter interface {
	Present(ctx context.Context, n Notice)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, n Notice)

func (f PresenterFunc) Present(ctx context.Context, n Notice) { f(ctx, n) }

// LogPresenter writes notices to a logger, for headless use.
type LogPresenter struct {
	Logger *slog.Logger
}

func (p LogPresenter) Present(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	p.Logger.Log(ctx, level, n.Title, "message", n.Message, "action", n.Action, "retry", n.Retry)
}

func noticeFor(err error) Notice {
	n := Notice{Message: err.Error(), Severity: SeverityError, Err: err}
	if c, ok := api.ConflictOf(err); ok {
		n.Severity = SeverityWarning
		n.Action = c.Remediation()
		switch c {
		case api.ConflictDuplicateSettlement:
			n.Title = "This expense is already settled"
		case api.ConflictVoteClosed:
			n.Title = "Voting has already closed"
		case api.ConflictVoteExists:
			n.Title = "A vote is already open for this expense"
		default:
			n.Title = "Conflicting change"
		}
		return n
	}

	switch {
	case errors.Is(err, api.ErrUnauthorized):
		n.Title = "You are not allowed to do this"
	case errors.Is(err, api.ErrNotFound):
		n.Title = "It no longer exists"
		n.Severity = SeverityWarning
	case errors.Is(err, api.ErrInvalid):
		n.Title = "The server rejected the request"
	default:
		n.Title = "Network problem"
		n.Retry = api.Retryable(err)
	}
	return n
}
