package rest

import (
	"context"
	"net/http"

	"nbbang/internal/api"
	"nbbang/internal/core"
)

// Services exposes the client as every backend port.
func (c *Client) Services() api.Services {
	return api.Services{Groups: c, Expenses: c, Settlements: c, Votes: c}
}

func (c *Client) ListMyGroups(ctx context.Context) ([]core.Group, error) {
	var out []core.Group
	if err := c.do(ctx, "list groups", http.MethodGet, "/groups/me", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetGroup(ctx context.Context, id string) (core.Group, error) {
	var out core.Group
	err := c.do(ctx, "get group", http.MethodGet, "/groups/"+esc(id), nil, &out)
	return out, err
}

func (c *Client) ListExpenses(ctx context.Context, groupID string) ([]core.Expense, error) {
	var out []core.Expense
	if err := c.do(ctx, "list expenses", http.MethodGet, "/groups/"+esc(groupID)+"/expenses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, "get expense", http.MethodGet, "/expenses/"+esc(id), nil, &out)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, "create expense", http.MethodPost, "/expenses", e, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, id string, patch api.ExpensePatch) error {
	return c.do(ctx, "update expense", http.MethodPatch, "/expenses/"+esc(id), patch, nil)
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, "delete expense", http.MethodDelete, "/expenses/"+esc(id), nil, nil)
}

func (c *Client) CreateSettlement(ctx context.Context, req api.SettlementRequest) (core.Settlement, error) {
	var out core.Settlement
	err := c.do(ctx, "create settlement", http.MethodPost, "/settlements", req, &out)
	return out, err
}

func (c *Client) GetSettlement(ctx context.Context, id string) (core.Settlement, error) {
	var out core.Settlement
	err := c.do(ctx, "get settlement", http.MethodGet, "/settlements/"+esc(id), nil, &out)
	return out, err
}

func (c *Client) DeleteSettlement(ctx context.Context, id string) error {
	return c.do(ctx, "delete settlement", http.MethodDelete, "/settlements/"+esc(id), nil, nil)
}

type transferRequest struct {
	DebtorID   string `json:"debtorId"`
	CreditorID string `json:"creditorId"`
}

func (c *Client) ConfirmTransfer(ctx context.Context, settlementID, debtorID, creditorID string) (core.Settlement, error) {
	var out core.Settlement
	err := c.do(ctx, "confirm transfer", http.MethodPost, "/settlements/"+esc(settlementID)+"/transfers",
		transferRequest{DebtorID: debtorID, CreditorID: creditorID}, &out)
	return out, err
}

type createVoteRequest struct {
	ExpenseID string `json:"expenseId"`
}

type createVoteResponse struct {
	VoteID string `json:"voteId"`
}

func (c *Client) CreateVote(ctx context.Context, expenseID string) (string, error) {
	var out createVoteResponse
	if err := c.do(ctx, "create vote", http.MethodPost, "/votes", createVoteRequest{ExpenseID: expenseID}, &out); err != nil {
		return "", err
	}
	return out.VoteID, nil
}

func (c *Client) GetVoteStatus(ctx context.Context, expenseID string) (core.Vote, error) {
	var out core.Vote
	err := c.do(ctx, "get vote status", http.MethodGet, "/expenses/"+esc(expenseID)+"/vote", nil, &out)
	return out, err
}

type toggleRequest struct {
	UserID string `json:"userId"`
}

func (c *Client) ToggleVote(ctx context.Context, userID, optionID string) error {
	return c.do(ctx, "toggle vote", http.MethodPost, "/vote-options/"+esc(optionID)+"/toggle", toggleRequest{UserID: userID}, nil)
}

type closeVoteResponse struct {
	SettlementID string `json:"settlementId"`
}

func (c *Client) CloseVote(ctx context.Context, expenseID string) (string, error) {
	var out closeVoteResponse
	if err := c.do(ctx, "close vote", http.MethodPost, "/expenses/"+esc(expenseID)+"/vote/close", nil, &out); err != nil {
		return "", err
	}
	return out.SettlementID, nil
}

func (c *Client) DeleteVote(ctx context.Context, expenseID string) error {
	return c.do(ctx, "delete vote", http.MethodDelete, "/expenses/"+esc(expenseID)+"/vote", nil, nil)
}
