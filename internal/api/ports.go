// Package api declares the remote collaborators the cache talks to and the
// error taxonomy their implementations return.
package api

import (
	"context"

	"nbbang/internal/core"
)

// Ports for the backend services.
type (
	GroupService interface {
		ListMyGroups(ctx context.Context) ([]core.Group, error)
		GetGroup(ctx context.Context, id string) (core.Group, error)
	}

	ExpenseService interface {
		ListExpenses(ctx context.Context, groupID string) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, id string, patch ExpensePatch) error
		DeleteExpense(ctx context.Context, id string) error
	}

	SettlementService interface {
		CreateSettlement(ctx context.Context, req SettlementRequest) (core.Settlement, error)
		GetSettlement(ctx context.Context, id string) (core.Settlement, error)
		DeleteSettlement(ctx context.Context, id string) error
		ConfirmTransfer(ctx context.Context, settlementID, debtorID, creditorID string) (core.Settlement, error)
	}

	VoteService interface {
		CreateVote(ctx context.Context, expenseID string) (voteID string, err error)
		// GetVoteStatus returns an error matching ErrNotFound when the
		// expense has no vote.
		GetVoteStatus(ctx context.Context, expenseID string) (core.Vote, error)
		ToggleVote(ctx context.Context, userID, optionID string) error
		CloseVote(ctx context.Context, expenseID string) (settlementID string, err error)
		DeleteVote(ctx context.Context, expenseID string) error
	}
)

// Services bundles one implementation of every port.
type Services struct {
	Groups      GroupService
	Expenses    ExpenseService
	Settlements SettlementService
	Votes       VoteService
}

// ExpensePatch carries the fields an update changes; nil means unchanged.
type ExpensePatch struct {
	Title        *string      `json:"title,omitempty"`
	Amount       *core.Money  `json:"amount,omitempty"`
	PayerID      *string      `json:"payerId,omitempty"`
	Participants []string     `json:"participants,omitempty"`
	Items        *[]core.Item `json:"items,omitempty"`
}

// Apply returns e with the patch applied.
func (p ExpensePatch) Apply(e core.Expense) core.Expense {
	e = e.Clone()
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.PayerID != nil {
		e.PayerID = *p.PayerID
	}
	if p.Participants != nil {
		e.Participants = append([]string(nil), p.Participants...)
	}
	if p.Items != nil {
		e.Items = append([]core.Item(nil), (*p.Items)...)
	}
	return e
}

// AmountShare is a per-participant DIRECT amount.
type AmountShare struct {
	UserID string     `json:"userId"`
	Amount core.Money `json:"amount"`
}

// RatioShare is a per-participant PERCENT ratio.
type RatioShare struct {
	UserID  string  `json:"userId"`
	Percent float64 `json:"percent"`
}

// SettlementRequest asks the backend to compute and store a settlement.
type SettlementRequest struct {
	ExpenseID    string        `json:"expenseId"`
	Method       core.Method   `json:"method"`
	Participants []string      `json:"participants,omitempty"`
	Amounts      []AmountShare `json:"amounts,omitempty"`
	Ratios       []RatioShare  `json:"ratios,omitempty"`
}
