// Package memory is an in-process implementation of the backend services.
// It backs the offline CLI mode and the cache tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"

	"nbbang/internal/api"
	"nbbang/internal/core"
)

// Operation names, used for fault injection and call counting.
const (
	OpListGroups       = "list_groups"
	OpGetGroup         = "get_group"
	OpListExpenses     = "list_expenses"
	OpGetExpense       = "get_expense"
	OpCreateExpense    = "create_expense"
	OpUpdateExpense    = "update_expense"
	OpDeleteExpense    = "delete_expense"
	OpCreateSettlement = "create_settlement"
	OpGetSettlement    = "get_settlement"
	OpDeleteSettlement = "delete_settlement"
	OpConfirmTransfer  = "confirm_transfer"
	OpCreateVote       = "create_vote"
	OpGetVoteStatus    = "get_vote_status"
	OpToggleVote       = "toggle_vote"
	OpCloseVote        = "close_vote"
	OpDeleteVote       = "delete_vote"
)

// Hook runs before every call, outside the store lock.
type Hook func(ctx context.Context, op, id string)

type Store struct {
	mu          sync.Mutex
	actor       string
	groups      []core.Group
	expenses    []core.Expense
	settlements map[string]core.Settlement
	votes       map[string]core.Vote // by expense id
	failures    map[string]error
	calls       map[string]int
	hook        Hook
}

var (
	_ api.GroupService      = (*Store)(nil)
	_ api.ExpenseService    = (*Store)(nil)
	_ api.SettlementService = (*Store)(nil)
	_ api.VoteService       = (*Store)(nil)
)

// New returns an empty store acting as user actor.
func New(actor string) *Store {
	return &Store{
		actor:       actor,
		settlements: map[string]core.Settlement{},
		votes:       map[string]core.Vote{},
		failures:    map[string]error{},
		calls:       map[string]int{},
	}
}

type seedFile struct {
	Groups   []core.Group   `json:"groups"`
	Expenses []core.Expense `json:"expenses"`
}

// NewFromFile seeds a store from a JSON file with "groups" and "expenses".
// A missing file yields an empty store.
func NewFromFile(path, actor string) (*Store, error) {
	s := New(actor)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for _, g := range seed.Groups {
		if err := s.AddGroup(g); err != nil {
			return nil, fmt.Errorf("seed group %s: %w", g.ID, err)
		}
	}
	for _, e := range seed.Expenses {
		if _, err := s.CreateExpense(context.Background(), e); err != nil {
			return nil, fmt.Errorf("seed expense %q: %w", e.Title, err)
		}
	}
	return s, nil
}

// Services exposes the store as every backend port.
func (s *Store) Services() api.Services {
	return api.Services{Groups: s, Expenses: s, Settlements: s, Votes: s}
}

// AddGroup stores a group, assigning an id when empty.
func (s *Store) AddGroup(g core.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.groups = append(s.groups, g.Clone())
	return nil
}

// FailOn makes op fail with err. An empty id matches every call of op.
// A nil err clears the failure.
func (s *Store) FailOn(op, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + ":" + id
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

// SetHook installs h; nil removes it.
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// begin counts the call, runs the hook and returns an injected failure.
func (s *Store) begin(ctx context.Context, op, id string) error {
	s.mu.Lock()
	s.calls[op]++
	hook := s.hook
	err, ok := s.failures[op+":"+id]
	if !ok {
		err = s.failures[op+":"]
	}
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, op, id)
	}
	if err := ctx.Err(); err != nil {
		return &api.Error{Op: op, Kind: api.ErrUnavailable, Err: err}
	}
	if err != nil {
		return err
	}
	return nil
}

func notFound(op, what, id string) error {
	return api.NewError(op, api.ErrNotFound, fmt.Sprintf("%s %s not found", what, id))
}

func (s *Store) ListMyGroups(ctx context.Context) ([]core.Group, error) {
	if err := s.begin(ctx, OpListGroups, ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if s.actor == "" || slices.ContainsFunc(g.Members, func(m core.Member) bool { return m.UserID == s.actor }) {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (core.Group, error) {
	if err := s.begin(ctx, OpGetGroup, id); err != nil {
		return core.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.groupIndex(id)
	if i < 0 {
		return core.Group{}, notFound(OpGetGroup, "group", id)
	}
	return s.groups[i].Clone(), nil
}

func (s *Store) groupIndex(id string) int {
	return slices.IndexFunc(s.groups, func(g core.Group) bool { return g.ID == id })
}

func (s *Store) expenseIndex(id string) int {
	return slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
}
