package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"nbbang/internal/api"
	"nbbang/internal/core"
	"nbbang/internal/split"
)

// CreateVote opens an item vote with one option per breakdown line.
func (s *Store) CreateVote(ctx context.Context, expenseID string) (string, error) {
	if err := s.begin(ctx, OpCreateVote, expenseID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.expenseIndex(expenseID)
	if i < 0 {
		return "", notFound(OpCreateVote, "expense", expenseID)
	}
	e := s.expenses[i]
	if e.SettlementID != "" {
		return "", api.NewConflict(OpCreateVote, api.ConflictDuplicateSettlement, "expense already has a settlement")
	}
	if _, ok := s.votes[expenseID]; ok {
		return "", api.NewConflict(OpCreateVote, api.ConflictVoteExists, "expense already has a vote")
	}
	if !e.HasItems() {
		return "", api.NewError(OpCreateVote, api.ErrInvalid, "expense has no items to vote on")
	}

	v := core.Vote{ID: uuid.NewString(), ExpenseID: expenseID, PayerID: e.PayerID}
	for _, it := range e.Items {
		v.Options = append(v.Options, core.VoteOption{ID: uuid.NewString(), ItemName: it.Name, Price: it.Price})
	}
	s.votes[expenseID] = v
	s.expenses[i].VoteID = v.ID
	return v.ID, nil
}

func (s *Store) GetVoteStatus(ctx context.Context, expenseID string) (core.Vote, error) {
	if err := s.begin(ctx, OpGetVoteStatus, expenseID); err != nil {
		return core.Vote{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[expenseID]
	if !ok {
		return core.Vote{}, notFound(OpGetVoteStatus, "vote for expense", expenseID)
	}
	return v.Clone(), nil
}

// ToggleVote flips userID's membership in the option.
func (s *Store) ToggleVote(ctx context.Context, userID, optionID string) error {
	if err := s.begin(ctx, OpToggleVote, optionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for expenseID, v := range s.votes {
		oi := slices.IndexFunc(v.Options, func(o core.VoteOption) bool { return o.ID == optionID })
		if oi < 0 {
			continue
		}
		if v.Closed {
			return api.NewConflict(OpToggleVote, api.ConflictVoteClosed, "vote is closed")
		}
		v = v.Clone()
		opt := &v.Options[oi]
		if j := slices.Index(opt.Voters, userID); j >= 0 {
			opt.Voters = slices.Delete(opt.Voters, j, j+1)
		} else {
			opt.Voters = append(opt.Voters, userID)
		}
		s.votes[expenseID] = v
		return nil
	}
	return notFound(OpToggleVote, "vote option", optionID)
}

// CloseVote ends the vote and creates an ITEM settlement: each option's
// price is split evenly among its voters, remainders staying with the payer.
func (s *Store) CloseVote(ctx context.Context, expenseID string) (string, error) {
	if err := s.begin(ctx, OpCloseVote, expenseID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[expenseID]
	if !ok {
		return "", notFound(OpCloseVote, "vote for expense", expenseID)
	}
	if v.Closed {
		return "", api.NewConflict(OpCloseVote, api.ConflictVoteClosed, "vote is already closed")
	}
	i := s.expenseIndex(expenseID)
	if i < 0 {
		return "", notFound(OpCloseVote, "expense", expenseID)
	}
	e := s.expenses[i]

	owed := map[string]core.Money{}
	var order []string
	for _, o := range v.Options {
		if len(o.Voters) == 0 {
			continue
		}
		per := o.Price / core.Money(len(o.Voters))
		for _, u := range o.Voters {
			if _, seen := owed[u]; !seen {
				order = append(order, u)
			}
			owed[u] += per
		}
	}
	shares := make([]split.Share, 0, len(order))
	for _, u := range order {
		shares = append(shares, split.Share{UserID: u, Amount: owed[u]})
	}

	st := core.Settlement{
		ID:        uuid.NewString(),
		ExpenseID: expenseID,
		Method:    core.MethodItem,
		Status:    core.StatusPending,
		Details:   s.details(e, shares),
	}
	if len(st.Details) == 0 {
		st.Status = core.StatusCompleted
	}
	v.Closed = true
	s.votes[expenseID] = v
	s.settlements[st.ID] = st
	s.expenses[i].SettlementID = st.ID
	return st.ID, nil
}

// DeleteVote is reserved to the vote's creator.
func (s *Store) DeleteVote(ctx context.Context, expenseID string) error {
	if err := s.begin(ctx, OpDeleteVote, expenseID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[expenseID]
	if !ok {
		return notFound(OpDeleteVote, "vote for expense", expenseID)
	}
	if s.actor != "" && v.PayerID != s.actor {
		return api.NewError(OpDeleteVote, api.ErrUnauthorized, "only the vote creator can delete it")
	}
	if v.Closed {
		return api.NewConflict(OpDeleteVote, api.ConflictVoteClosed, "closed votes are removed with their settlement")
	}
	delete(s.votes, expenseID)
	if i := s.expenseIndex(expenseID); i >= 0 {
		s.expenses[i].VoteID = ""
	}
	return nil
}
