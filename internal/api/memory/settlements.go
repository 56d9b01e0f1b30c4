package memory

import (
	"context"

	"github.com/google/uuid"

	"nbbang/internal/api"
	"nbbang/internal/core"
	"nbbang/internal/split"
)

// CreateSettlement validates the request the same way the client does and
// derives detail rows with every non-payer owing the payer. Equal splits
// leave the integer-division remainder with the payer.
func (s *Store) CreateSettlement(ctx context.Context, req api.SettlementRequest) (core.Settlement, error) {
	if err := s.begin(ctx, OpCreateSettlement, req.ExpenseID); err != nil {
		return core.Settlement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.expenseIndex(req.ExpenseID)
	if i < 0 {
		return core.Settlement{}, notFound(OpCreateSettlement, "expense", req.ExpenseID)
	}
	e := s.expenses[i]
	if e.SettlementID != "" {
		return core.Settlement{}, api.NewConflict(OpCreateSettlement, api.ConflictDuplicateSettlement, "expense already has a settlement")
	}
	if v, ok := s.votes[e.ID]; ok && !v.Closed {
		return core.Settlement{}, api.NewConflict(OpCreateSettlement, api.ConflictVoteExists, "expense has an open vote")
	}
	if req.Method == core.MethodItem {
		return core.Settlement{}, api.NewError(OpCreateSettlement, api.ErrInvalid, "item settlements are created by closing a vote")
	}

	shares, err := sharesFor(e, req)
	if err != nil {
		return core.Settlement{}, api.NewError(OpCreateSettlement, api.ErrInvalid, err.Error())
	}

	st := core.Settlement{
		ID:        uuid.NewString(),
		ExpenseID: e.ID,
		Method:    req.Method,
		Status:    core.StatusPending,
		Details:   s.details(e, shares),
	}
	if len(st.Details) == 0 {
		st.Status = core.StatusCompleted
	}
	s.settlements[st.ID] = st
	s.expenses[i].SettlementID = st.ID
	return st.Clone(), nil
}

func sharesFor(e core.Expense, req api.SettlementRequest) ([]split.Share, error) {
	switch req.Method {
	case core.MethodEqual:
		eq, err := split.Equal(e.Amount, req.Participants)
		if err != nil {
			return nil, err
		}
		shares := make([]split.Share, len(req.Participants))
		for i, p := range req.Participants {
			shares[i] = split.Share{UserID: p, Amount: eq.PerPerson}
		}
		return shares, nil
	case core.MethodDirect:
		entries := make([]split.Entry, len(req.Amounts))
		for i, a := range req.Amounts {
			entries[i] = split.Entry{UserID: a.UserID, Amount: a.Amount}
		}
		return split.Direct(e.Amount, entries)
	case core.MethodPercent:
		ratios := make([]split.Ratio, len(req.Ratios))
		for i, r := range req.Ratios {
			ratios[i] = split.Ratio{UserID: r.UserID, Percent: r.Percent}
		}
		return split.Percent(e.Amount, ratios)
	default:
		return nil, core.ErrUnknownMethod
	}
}

// details must be called with s.mu held.
func (s *Store) details(e core.Expense, shares []split.Share) []core.SettlementDetail {
	names := map[string]string{}
	if gi := s.groupIndex(e.GroupID); gi >= 0 {
		for _, m := range s.groups[gi].Members {
			names[m.UserID] = m.Name
		}
	}
	var rows []core.SettlementDetail
	for _, sh := range shares {
		if sh.UserID == e.PayerID || sh.Amount <= 0 {
			continue
		}
		rows = append(rows, core.SettlementDetail{
			DebtorID:     sh.UserID,
			DebtorName:   names[sh.UserID],
			CreditorID:   e.PayerID,
			CreditorName: names[e.PayerID],
			Amount:       sh.Amount,
		})
	}
	return rows
}

func (s *Store) GetSettlement(ctx context.Context, id string) (core.Settlement, error) {
	if err := s.begin(ctx, OpGetSettlement, id); err != nil {
		return core.Settlement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[id]
	if !ok {
		return core.Settlement{}, notFound(OpGetSettlement, "settlement", id)
	}
	return st.Clone(), nil
}

// DeleteSettlement frees the expense for a new settlement.
func (s *Store) DeleteSettlement(ctx context.Context, id string) error {
	if err := s.begin(ctx, OpDeleteSettlement, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[id]
	if !ok {
		return notFound(OpDeleteSettlement, "settlement", id)
	}
	delete(s.settlements, id)
	if i := s.expenseIndex(st.ExpenseID); i >= 0 {
		s.expenses[i].SettlementID = ""
		if v, ok := s.votes[st.ExpenseID]; ok && v.Closed {
			delete(s.votes, st.ExpenseID)
			s.expenses[i].VoteID = ""
		}
	}
	return nil
}

// ConfirmTransfer marks one row sent and completes the settlement when it
// was the last one outstanding.
func (s *Store) ConfirmTransfer(ctx context.Context, settlementID, debtorID, creditorID string) (core.Settlement, error) {
	if err := s.begin(ctx, OpConfirmTransfer, settlementID); err != nil {
		return core.Settlement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID]
	if !ok {
		return core.Settlement{}, notFound(OpConfirmTransfer, "settlement", settlementID)
	}
	st = st.Clone()
	found := false
	for i, d := range st.Details {
		if d.DebtorID == debtorID && d.CreditorID == creditorID {
			st.Details[i].Sent = true
			found = true
		}
	}
	if !found {
		return core.Settlement{}, notFound(OpConfirmTransfer, "transfer", debtorID+"->"+creditorID)
	}
	if st.AllSent() {
		st.Status = core.StatusCompleted
	}
	s.settlements[settlementID] = st
	return st.Clone(), nil
}
