package memory

import (
	"context"

	"github.com/google/uuid"

	"nbbang/internal/api"
	"nbbang/internal/core"
)

func (s *Store) ListExpenses(ctx context.Context, groupID string) ([]core.Expense, error) {
	if err := s.begin(ctx, OpListExpenses, groupID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupIndex(groupID) < 0 {
		return nil, notFound(OpListExpenses, "group", groupID)
	}
	var out []core.Expense
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	if err := s.begin(ctx, OpGetExpense, id); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(id)
	if i < 0 {
		return core.Expense{}, notFound(OpGetExpense, "expense", id)
	}
	return s.expenses[i].Clone(), nil
}

// CreateExpense stores e. Settlement and vote ids on the input are ignored.
func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := s.begin(ctx, OpCreateExpense, e.GroupID); err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, api.NewError(OpCreateExpense, api.ErrInvalid, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupIndex(e.GroupID) < 0 {
		return core.Expense{}, notFound(OpCreateExpense, "group", e.GroupID)
	}
	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.SettlementID, e.VoteID = "", ""
	s.expenses = append(s.expenses, e)
	return e.Clone(), nil
}

func (s *Store) UpdateExpense(ctx context.Context, id string, patch api.ExpensePatch) error {
	if err := s.begin(ctx, OpUpdateExpense, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(id)
	if i < 0 {
		return notFound(OpUpdateExpense, "expense", id)
	}
	updated := patch.Apply(s.expenses[i])
	if err := updated.Validate(); err != nil {
		return api.NewError(OpUpdateExpense, api.ErrInvalid, err.Error())
	}
	s.expenses[i] = updated
	return nil
}

// DeleteExpense removes the expense together with its settlement and vote.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	if err := s.begin(ctx, OpDeleteExpense, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(id)
	if i < 0 {
		return notFound(OpDeleteExpense, "expense", id)
	}
	e := s.expenses[i]
	if e.PayerID != s.actor && s.actor != "" {
		return api.NewError(OpDeleteExpense, api.ErrUnauthorized, "only the payer can delete an expense")
	}
	delete(s.settlements, e.SettlementID)
	delete(s.votes, e.ID)
	s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
	return nil
}
