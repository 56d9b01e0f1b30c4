package coordinator

import (
	"context"
	"time"

	"nbbang/internal/api"
	"nbbang/internal/core"
	"nbbang/internal/feed"
	applog "nbbang/internal/log"
)

// ExpenseInput is a new expense as entered by the user.
type ExpenseInput struct {
	Title        string
	Amount       core.Money
	SpentAt      time.Time
	PayerID      string
	GroupID      string
	Participants []string
	Items        []core.Item
	// ConfirmAmountOverride accepts an amount that differs from the item
	// total after the user confirmed it.
	ConfirmAmountOverride bool
}

// ExpenseUpdate changes an existing expense.
type ExpenseUpdate struct {
	Patch                 api.ExpensePatch
	ConfirmAmountOverride bool
}

func checkExpense(e core.Expense, override bool) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !override {
		return e.CheckItems()
	}
	return nil
}

// CreateExpense validates and stores a new expense, then refreshes the
// group's expense list.
func (c *Coordinator) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		Title:        in.Title,
		Amount:       in.Amount,
		SpentAt:      in.SpentAt,
		PayerID:      in.PayerID,
		GroupID:      in.GroupID,
		Participants: in.Participants,
		Items:        in.Items,
	}
	if e.SpentAt.IsZero() {
		e.SpentAt = time.Now().UTC()
	}
	if e.PayerID == "" {
		e.PayerID = c.userID
	}
	if err := checkExpense(e, in.ConfirmAmountOverride); err != nil {
		return core.Expense{}, err
	}

	created, err := c.svc.Expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, c.fail(ctx, "create expense", err)
	}
	c.logger.InfoContext(ctx, "Expense created",
		applog.FieldExpenseID, created.ID, applog.FieldGroupID, created.GroupID)

	c.refreshed(ctx, applog.OpCreate, c.store.InvalidateExpense(ctx, created.ID))
	c.publish(ctx, feed.NewMessage(feed.EntityExpense, feed.ActionCreated, created.ID).In(created.GroupID, created.ID))
	return created, nil
}

// UpdateExpense validates the patched expense locally before sending it.
func (c *Coordinator) UpdateExpense(ctx context.Context, id string, u ExpenseUpdate) error {
	current, err := c.expense(ctx, id)
	if err != nil {
		return c.fail(ctx, "update expense", err)
	}
	if err := checkExpense(u.Patch.Apply(current), u.ConfirmAmountOverride); err != nil {
		return err
	}

	if err := c.svc.Expenses.UpdateExpense(ctx, id, u.Patch); err != nil {
		return c.fail(ctx, "update expense", err)
	}
	c.logger.InfoContext(ctx, "Expense updated", applog.FieldExpenseID, id)

	c.refreshed(ctx, applog.OpUpdate, c.store.InvalidateExpense(ctx, id))
	c.publish(ctx, feed.NewMessage(feed.EntityExpense, feed.ActionUpdated, id).In(current.GroupID, id))
	return nil
}

// DeleteExpense removes an expense and drops it from the selection.
func (c *Coordinator) DeleteExpense(ctx context.Context, id string) error {
	groupID := c.groupOf(id)
	if err := c.svc.Expenses.DeleteExpense(ctx, id); err != nil {
		return c.fail(ctx, "delete expense", err)
	}
	c.logger.InfoContext(ctx, "Expense deleted", applog.FieldExpenseID, id)

	c.store.DeselectExpense(id)
	c.sessions.Delete(sessionKey(id, c.userID))
	c.refreshed(ctx, applog.OpDelete, c.store.InvalidateExpense(ctx, id))
	c.publish(ctx, feed.NewMessage(feed.EntityExpense, feed.ActionDeleted, id).In(groupID, id))
	return nil
}
