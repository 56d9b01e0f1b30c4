// Package coordinator runs user-initiated writes against the backend and
// tells the store which cached slices they made stale.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nbbang/internal/api"
	"nbbang/internal/cache"
	"nbbang/internal/core"
	"nbbang/internal/feed"
	applog "nbbang/internal/log"
	"nbbang/internal/store"
	"nbbang/internal/vote"
)

const (
	DefaultSessionTTL = 30 * time.Minute
	DefaultSessionMax = 64
)

// Options configures a Coordinator. Only UserID is required.
type Options struct {
	UserID    string
	Logger    *applog.Logger
	Presenter Presenter
	Publisher feed.Publisher
	// Sessions holds open vote edits; defaults to an LRU cache of
	// DefaultSessionMax entries expiring after DefaultSessionTTL.
	Sessions cache.Cache[*vote.Session]
}

type Coordinator struct {
	svc       api.Services
	store     *store.Store
	userID    string
	origin    string
	logger    *applog.Logger
	presenter Presenter
	publisher feed.Publisher
	sessions  cache.Cache[*vote.Session]
}

func New(svc api.Services, st *store.Store, opts Options) (*Coordinator, error) {
	if opts.UserID == "" {
		return nil, errors.New("coordinator: user id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentCoordinator)

	presenter := opts.Presenter
	if presenter == nil {
		presenter = LogPresenter{Logger: logger.Logger}
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = cache.NewLRUCache[*vote.Session](DefaultSessionMax, DefaultSessionTTL)
	}

	return &Coordinator{
		svc:       svc,
		store:     st,
		userID:    opts.UserID,
		origin:    uuid.NewString(),
		logger:    logger,
		presenter: presenter,
		publisher: opts.Publisher,
		sessions:  sessions,
	}, nil
}

// fail presents a remote failure to the user and returns it wrapped with op.
// Local validation errors are returned as they are.
func (c *Coordinator) fail(ctx context.Context, op string, err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	c.logger.WarnContext(ctx, "Write failed",
		applog.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	c.presenter.Present(ctx, noticeFor(err))
	return fmt.Errorf("%s: %w", op, err)
}

// refreshed logs a failed invalidation. The write already succeeded, so the
// caller is not told.
func (c *Coordinator) refreshed(ctx context.Context, op string, err error) {
	if err != nil {
		c.logger.WarnContext(ctx, "Cache refresh after write failed",
			applog.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	}
}

func (c *Coordinator) publish(ctx context.Context, m feed.Message) {
	if c.publisher == nil {
		return
	}
	m.Extra = map[string]string{"origin": c.origin, "userId": c.userID}
	if err := c.publisher.Publish(ctx, m); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish change",
			applog.FieldEntity, m.Entity,
			applog.FieldAction, m.Action,
			applog.FieldError, err)
	}
}

// expense returns the cached copy of id, fetching it when it is not cached.
func (c *Coordinator) expense(ctx context.Context, id string) (core.Expense, error) {
	if e, ok := c.store.CurrentExpense(); ok && e.ID == id {
		return e, nil
	}
	if e, ok := c.store.Expense(id); ok {
		return e, nil
	}
	return c.svc.Expenses.GetExpense(ctx, id)
}

func (c *Coordinator) groupOf(expenseID string) string {
	if e, ok := c.store.Expense(expenseID); ok {
		return e.GroupID
	}
	if e, ok := c.store.CurrentExpense(); ok && e.ID == expenseID {
		return e.GroupID
	}
	return ""
}
