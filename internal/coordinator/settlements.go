package coordinator

import (
	"context"
	"errors"

	"nbbang/internal/api"
	"nbbang/internal/core"
	"nbbang/internal/feed"
	applog "nbbang/internal/log"
	"nbbang/internal/split"
)

var ErrNoSettlement = errors.New("expense has no settlement")

// SettlementInput is the user's choice of method and per-person values.
type SettlementInput struct {
	ExpenseID    string
	Method       core.Method
	Participants []string
	Amounts      []api.AmountShare
	Ratios       []api.RatioShare
}

// SettlementResult is a created settlement, or for ITEM the vote that will
// produce one.
type SettlementResult struct {
	Settlement *core.Settlement
	VoteID     string
}

// CreateSettlement validates in against the expense total and submits it.
// Nothing is sent when validation fails. ITEM creates a vote instead.
func (c *Coordinator) CreateSettlement(ctx context.Context, in SettlementInput) (SettlementResult, error) {
	e, err := c.expense(ctx, in.ExpenseID)
	if err != nil {
		return SettlementResult{}, c.fail(ctx, "create settlement", err)
	}

	req := split.Request{
		Method:       in.Method,
		Total:        e.Amount,
		Participants: in.Participants,
		Items:        e.Items,
	}
	for _, a := range in.Amounts {
		req.Amounts = append(req.Amounts, split.Entry{UserID: a.UserID, Amount: a.Amount})
	}
	for _, r := range in.Ratios {
		req.Ratios = append(req.Ratios, split.Ratio{UserID: r.UserID, Percent: r.Percent})
	}
	if err := split.Validate(req); err != nil {
		return SettlementResult{}, err
	}

	if in.Method == core.MethodItem {
		voteID, err := c.CreateVote(ctx, in.ExpenseID)
		if err != nil {
			return SettlementResult{}, err
		}
		return SettlementResult{VoteID: voteID}, nil
	}

	st, err := c.svc.Settlements.CreateSettlement(ctx, api.SettlementRequest{
		ExpenseID:    in.ExpenseID,
		Method:       in.Method,
		Participants: in.Participants,
		Amounts:      in.Amounts,
		Ratios:       in.Ratios,
	})
	if err != nil {
		return SettlementResult{}, c.fail(ctx, "create settlement", err)
	}
	c.logger.InfoContext(ctx, "Settlement created",
		applog.FieldExpenseID, in.ExpenseID,
		applog.FieldSettlementID, st.ID,
		applog.FieldMethod, st.Method)

	c.refreshed(ctx, applog.OpCreate, c.store.InvalidateSettlement(ctx, in.ExpenseID))
	c.publish(ctx, feed.NewMessage(feed.EntitySettlement, feed.ActionCreated, st.ID).In(e.GroupID, in.ExpenseID))
	return SettlementResult{Settlement: &st}, nil
}

func (c *Coordinator) settlementOf(ctx context.Context, expenseID string) (core.Expense, error) {
	e, err := c.expense(ctx, expenseID)
	if err != nil {
		return core.Expense{}, err
	}
	if e.SettlementID == "" {
		return core.Expense{}, ErrNoSettlement
	}
	return e, nil
}

// DeleteSettlement removes the settlement of expenseID so a new one can be
// created.
func (c *Coordinator) DeleteSettlement(ctx context.Context, expenseID string) error {
	e, err := c.settlementOf(ctx, expenseID)
	if err != nil {
		return c.fail(ctx, "delete settlement", err)
	}
	if err := c.svc.Settlements.DeleteSettlement(ctx, e.SettlementID); err != nil {
		return c.fail(ctx, "delete settlement", err)
	}
	c.logger.InfoContext(ctx, "Settlement deleted",
		applog.FieldExpenseID, expenseID, applog.FieldSettlementID, e.SettlementID)

	c.refreshed(ctx, applog.OpDelete, c.store.InvalidateSettlement(ctx, expenseID))
	c.publish(ctx, feed.NewMessage(feed.EntitySettlement, feed.ActionDeleted, e.SettlementID).In(e.GroupID, expenseID))
	return nil
}

// ConfirmTransfer marks the debtor-to-creditor row of expenseID's settlement
// as sent.
func (c *Coordinator) ConfirmTransfer(ctx context.Context, expenseID, debtorID, creditorID string) (core.Settlement, error) {
	e, err := c.settlementOf(ctx, expenseID)
	if err != nil {
		return core.Settlement{}, c.fail(ctx, "confirm transfer", err)
	}
	st, err := c.svc.Settlements.ConfirmTransfer(ctx, e.SettlementID, debtorID, creditorID)
	if err != nil {
		return core.Settlement{}, c.fail(ctx, "confirm transfer", err)
	}
	c.logger.InfoContext(ctx, "Transfer confirmed",
		applog.FieldSettlementID, st.ID,
		"debtor", debtorID,
		"creditor", creditorID,
		"status", st.Status)

	c.refreshed(ctx, applog.OpConfirm, c.store.InvalidateSettlement(ctx, expenseID))
	c.publish(ctx, feed.NewMessage(feed.EntitySettlement, feed.ActionConfirmed, st.ID).In(e.GroupID, expenseID))
	return st, nil
}
