package coordinator

import (
	"context"

	"nbbang/internal/feed"
	applog "nbbang/internal/log"
)

// HandleChange applies a change notification from another client to the
// store. Notifications this coordinator published itself are ignored.
func (c *Coordinator) HandleChange(ctx context.Context, m feed.Message) error {
	if m.Extra["origin"] == c.origin {
		return nil
	}
	expenseID := m.ExpenseID
	logger := applog.FromContext(ctx, c.logger).With(
		applog.FieldEntity, m.Entity,
		applog.FieldAction, m.Action)
	ctx = applog.NewContext(ctx, logger)
	logger.DebugContext(ctx, "Change received",
		append([]any{"id", m.ID}, applog.NewFields().WithExpense(m.GroupID, expenseID).ToSlice()...)...)

	switch m.Entity {
	case feed.EntityGroup:
		return c.store.InvalidateAll(ctx)

	case feed.EntityExpense:
		if expenseID == "" {
			expenseID = m.ID
		}
		if m.Action == feed.ActionDeleted {
			c.store.DeselectExpense(expenseID)
			c.sessions.Delete(sessionKey(expenseID, c.userID))
		}
		return c.store.InvalidateExpense(ctx, expenseID)

	case feed.EntitySettlement:
		return c.store.InvalidateSettlement(ctx, expenseID)

	case feed.EntityVote:
		switch m.Action {
		case feed.ActionClosed, feed.ActionDeleted:
			if s, ok := c.Session(expenseID); ok {
				s.MarkStale()
			}
			c.sessions.Delete(sessionKey(expenseID, c.userID))
			if m.Action == feed.ActionClosed {
				return c.store.InvalidateSettlement(ctx, expenseID)
			}
			return c.store.InvalidateExpense(ctx, expenseID)
		case feed.ActionToggled:
			// Our own votes changed on another device.
			if m.Extra["userId"] == c.userID {
				if s, ok := c.Session(expenseID); ok {
					s.MarkStale()
				}
			}
			return nil
		default:
			return c.store.InvalidateExpense(ctx, expenseID)
		}
	}
	return nil
}
