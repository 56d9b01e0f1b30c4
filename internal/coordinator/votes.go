package coordinator

import (
	"context"
	"errors"
	"fmt"

	"nbbang/internal/api"
	"nbbang/internal/feed"
	applog "nbbang/internal/log"
	"nbbang/internal/split"
	"nbbang/internal/vote"
)

var ErrNoSession = errors.New("no open vote session")

func sessionKey(expenseID, userID string) string {
	return expenseID + "/" + userID
}

// CreateVote starts an item vote for an expense with an item breakdown.
func (c *Coordinator) CreateVote(ctx context.Context, expenseID string) (string, error) {
	e, err := c.expense(ctx, expenseID)
	if err != nil {
		return "", c.fail(ctx, "create vote", err)
	}
	if err := split.Item(e.Items); err != nil {
		return "", err
	}

	voteID, err := c.svc.Votes.CreateVote(ctx, expenseID)
	if err != nil {
		return "", c.fail(ctx, "create vote", err)
	}
	c.logger.InfoContext(ctx, "Vote created",
		applog.FieldExpenseID, expenseID, applog.FieldVoteID, voteID)

	c.refreshed(ctx, applog.OpCreate, c.store.InvalidateExpense(ctx, expenseID))
	c.publish(ctx, feed.NewMessage(feed.EntityVote, feed.ActionCreated, voteID).In(e.GroupID, expenseID))
	return voteID, nil
}

// OpenVote loads the vote status and starts an edit session for the user,
// replacing any earlier session for the same vote.
func (c *Coordinator) OpenVote(ctx context.Context, expenseID string) (*vote.Session, error) {
	v, err := c.svc.Votes.GetVoteStatus(ctx, expenseID)
	if err != nil {
		return nil, c.fail(ctx, "open vote", err)
	}
	s := vote.NewSession(v, c.userID)
	c.sessions.Set(sessionKey(expenseID, c.userID), s)
	return s, nil
}

// Session returns the open edit session for expenseID.
func (c *Coordinator) Session(expenseID string) (*vote.Session, bool) {
	return c.sessions.Get(sessionKey(expenseID, c.userID))
}

// SubmitVote sends the minimal toggles for the open session. When the batch
// fails part way the session is resynchronised from the server before the
// error is returned, so the user can retry what is still missing.
func (c *Coordinator) SubmitVote(ctx context.Context, expenseID string) (vote.Delta, error) {
	s, ok := c.Session(expenseID)
	if !ok {
		return vote.Delta{}, ErrNoSession
	}

	delta, err := s.Submit(ctx, c.svc.Votes)
	if err == nil {
		c.logger.InfoContext(ctx, "Vote submitted",
			applog.FieldExpenseID, expenseID,
			"added", len(delta.Added),
			"removed", len(delta.Removed))
		if !delta.Empty() {
			c.publish(ctx, feed.NewMessage(feed.EntityVote, feed.ActionToggled, expenseID).In(c.groupOf(expenseID), expenseID))
		}
		return delta, nil
	}

	var partial *vote.PartialSubmitError
	if !errors.As(err, &partial) {
		return delta, err
	}
	c.logger.WarnContext(ctx, "Vote submit stopped part way",
		applog.FieldExpenseID, expenseID,
		"applied", len(partial.Applied),
		applog.FieldOptionID, partial.Failed,
		applog.FieldError, partial.Err)

	if len(partial.Applied) > 0 {
		c.publish(ctx, feed.NewMessage(feed.EntityVote, feed.ActionToggled, expenseID).In(c.groupOf(expenseID), expenseID))
	}
	if rerr := c.Resync(ctx, expenseID); rerr != nil {
		c.logger.WarnContext(ctx, "Vote resync failed", applog.FieldExpenseID, expenseID, applog.FieldError, rerr)
	}
	if errors.As(partial.Err, new(*api.Error)) {
		c.presenter.Present(ctx, noticeFor(partial.Err))
	}
	return delta, fmt.Errorf("submit vote: %w", err)
}

// Resync reloads the vote status into the open session.
func (c *Coordinator) Resync(ctx context.Context, expenseID string) error {
	s, ok := c.Session(expenseID)
	if !ok {
		return ErrNoSession
	}
	v, err := c.svc.Votes.GetVoteStatus(ctx, expenseID)
	if err != nil {
		return err
	}
	s.Resync(v)
	return nil
}

// CloseVote ends voting; the backend turns the votes into a settlement.
func (c *Coordinator) CloseVote(ctx context.Context, expenseID string) (string, error) {
	settlementID, err := c.svc.Votes.CloseVote(ctx, expenseID)
	if err != nil {
		return "", c.fail(ctx, "close vote", err)
	}
	c.logger.InfoContext(ctx, "Vote closed",
		applog.FieldExpenseID, expenseID, applog.FieldSettlementID, settlementID)

	c.sessions.Delete(sessionKey(expenseID, c.userID))
	c.refreshed(ctx, applog.OpClose, c.store.InvalidateSettlement(ctx, expenseID))
	c.publish(ctx, feed.NewMessage(feed.EntityVote, feed.ActionClosed, expenseID).In(c.groupOf(expenseID), expenseID))
	return settlementID, nil
}

// DeleteVote removes an open vote. Only its creator may do this.
func (c *Coordinator) DeleteVote(ctx context.Context, expenseID string) error {
	if err := c.svc.Votes.DeleteVote(ctx, expenseID); err != nil {
		return c.fail(ctx, "delete vote", err)
	}
	c.logger.InfoContext(ctx, "Vote deleted", applog.FieldExpenseID, expenseID)

	c.sessions.Delete(sessionKey(expenseID, c.userID))
	c.refreshed(ctx, applog.OpDelete, c.store.InvalidateExpense(ctx, expenseID))
	c.publish(ctx, feed.NewMessage(feed.EntityVote, feed.ActionDeleted, expenseID).In(c.groupOf(expenseID), expenseID))
	return nil
}
