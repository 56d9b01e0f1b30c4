// Package store caches the last known server state of groups, expenses and
// settlements. Reads are synchronous snapshots; every write replaces a whole
// slice after a successful fetch, so readers never observe a partial update.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"nbbang/internal/api"
	"nbbang/internal/core"
	applog "nbbang/internal/log"
)

// Slice names one independently refreshed part of the cache.
type Slice string

const (
	SliceGroups         Slice = "groups"
	SliceCurrentGroup   Slice = "current_group"
	SliceExpenses       Slice = "expenses"
	SliceCurrentExpense Slice = "current_expense"
)

// DefaultFetchConcurrency bounds the settlement look-ups of one refresh.
const DefaultFetchConcurrency = 8

// Event is published after a slice commit.
type Event struct {
	Slice      Slice
	Generation uint64
}

// Options configures a Store.
type Options struct {
	Logger           *applog.Logger
	FetchConcurrency int
}

// Snapshot is a consistent copy of every slice.
type Snapshot struct {
	Groups         []core.Group
	CurrentGroup   *core.Group
	ExpenseGroupID string
	Expenses       []core.Expense
	Settlements    map[string]core.Settlement // by expense id
	CurrentExpense *core.Expense
	// CurrentSettlement is the settlement of CurrentExpense when it has one
	// and the look-up succeeded.
	CurrentSettlement *core.Settlement
}

type Store struct {
	svc    api.Services
	logger *applog.Logger
	limit  int

	mu                sync.RWMutex
	groups            []core.Group
	currentGroup      *core.Group
	expenseGroupID    string
	expenses          []core.Expense
	settlements       map[string]core.Settlement
	currentExpense    *core.Expense
	currentSettlement *core.Settlement
	// started holds the token of the newest fetch per slice, committed the
	// token of the data currently held.
	started   map[Slice]uint64
	committed map[Slice]uint64

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// New returns an empty store reading through svc.
func New(svc api.Services, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	limit := opts.FetchConcurrency
	if limit <= 0 {
		limit = DefaultFetchConcurrency
	}
	return &Store{
		svc:         svc,
		logger:      logger.WithComponent(applog.ComponentStore),
		limit:       limit,
		settlements: map[string]core.Settlement{},
		started:     map[Slice]uint64{},
		committed:   map[Slice]uint64{},
		subs:        map[int]func(Event){},
	}
}

// Subscribe registers fn for commit events and returns its cancel func.
// fn runs on the goroutine that committed and must not block.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(events ...Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// begin takes a token for a new fetch of slice. Any fetch holding an older
// token is discarded at commit time.
func (s *Store) begin(slices ...Slice) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gen uint64
	for _, sl := range slices {
		s.started[sl]++
		gen = s.started[sl]
	}
	return gen
}

// commit applies fn under the write lock if gen is still the newest token for
// slice, then publishes the event.
func (s *Store) commit(ctx context.Context, slice Slice, gen uint64, fn func() bool) error {
	s.mu.Lock()
	if s.started[slice] != gen {
		latest := s.started[slice]
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarding stale response",
			applog.FieldSlice, slice, applog.FieldGeneration, gen, "latest", latest)
		return errSuperseded
	}
	if !fn() {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarding response for a deselected entity",
			applog.FieldSlice, slice, applog.FieldGeneration, gen)
		return errSuperseded
	}
	s.committed[slice] = gen
	s.mu.Unlock()

	s.publish(Event{Slice: slice, Generation: gen})
	return nil
}

func quiet(err error) error {
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}

// RefreshGroups replaces the group list. On failure the previous list stays.
func (s *Store) RefreshGroups(ctx context.Context) error {
	return quiet(s.refreshGroups(ctx))
}

func (s *Store) refreshGroups(ctx context.Context) error {
	gen := s.begin(SliceGroups)
	groups, err := s.svc.Groups.ListMyGroups(ctx)
	if err != nil {
		s.readFailed(ctx, SliceGroups, gen, err)
		return err
	}
	return s.commit(ctx, SliceGroups, gen, func() bool {
		s.groups = groups
		return true
	})
}

// SelectGroup loads a group, makes it current and then loads its expenses.
// The expense stage does not run when the group fetch fails.
func (s *Store) SelectGroup(ctx context.Context, id string) error {
	// Responses for the previously selected group are now stale.
	s.begin(SliceExpenses)

	return newPipeline("select_group").
		then("group", func(ctx context.Context) error {
			return s.loadGroup(ctx, id)
		}).
		then("expenses", func(ctx context.Context) error {
			return s.refreshExpenses(ctx, id)
		}).
		run(ctx)
}

func (s *Store) loadGroup(ctx context.Context, id string) error {
	gen := s.begin(SliceCurrentGroup)
	g, err := s.svc.Groups.GetGroup(ctx, id)
	if err != nil {
		s.readFailed(ctx, SliceCurrentGroup, gen, err, applog.FieldGroupID, id)
		return err
	}
	return s.commit(ctx, SliceCurrentGroup, gen, func() bool {
		if s.currentGroup == nil || s.currentGroup.ID != g.ID {
			s.currentExpense = nil
			s.currentSettlement = nil
			s.started[SliceCurrentExpense]++
		}
		s.currentGroup = &g
		return true
	})
}

// RefreshExpenses replaces the expense list of groupID together with the
// settlements of those expenses. Settlement look-ups run concurrently and a
// failed look-up only leaves that settlement out of the cache.
func (s *Store) RefreshExpenses(ctx context.Context, groupID string) error {
	return quiet(s.refreshExpenses(ctx, groupID))
}

func (s *Store) refreshExpenses(ctx context.Context, groupID string) error {
	gen := s.begin(SliceExpenses)
	expenses, err := s.svc.Expenses.ListExpenses(ctx, groupID)
	if err != nil {
		s.readFailed(ctx, SliceExpenses, gen, err, applog.FieldGroupID, groupID)
		return err
	}

	settlements := s.fetchSettlements(ctx, expenses)

	return s.commit(ctx, SliceExpenses, gen, func() bool {
		if s.currentGroup != nil && s.currentGroup.ID != groupID {
			return false
		}
		s.expenseGroupID = groupID
		s.expenses = expenses
		s.settlements = settlements
		if s.currentExpense != nil {
			if st, ok := settlements[s.currentExpense.ID]; ok {
				st = st.Clone()
				s.currentSettlement = &st
			}
		}
		return true
	})
}

func (s *Store) fetchSettlements(ctx context.Context, expenses []core.Expense) map[string]core.Settlement {
	var (
		mu     sync.Mutex
		out    = make(map[string]core.Settlement)
		failed int
	)

	// Look-ups never return an error to the group so one failure cannot
	// cancel the others.
	logger := applog.FromContext(ctx, s.logger)
	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, e := range expenses {
		if e.SettlementID == "" {
			continue
		}
		g.Go(func() error {
			st, err := s.svc.Settlements.GetSettlement(ctx, e.SettlementID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				logger.WarnContext(ctx, "Settlement look-up failed",
					applog.FieldExpenseID, e.ID,
					applog.FieldSettlementID, e.SettlementID,
					applog.FieldError, err)
				return nil
			}
			out[e.ID] = st
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		logger.InfoContext(ctx, "Settlements partially loaded",
			applog.FieldCount, len(out), applog.FieldFailed, failed)
	}
	return out
}

// SelectExpense loads one expense and makes it current. Its settlement is
// fetched best effort: a failed look-up is logged and the expense still
// becomes current.
func (s *Store) SelectExpense(ctx context.Context, id string) error {
	return quiet(s.selectExpense(ctx, id))
}

func (s *Store) selectExpense(ctx context.Context, id string) error {
	gen := s.begin(SliceCurrentExpense)
	e, err := s.svc.Expenses.GetExpense(ctx, id)
	if err != nil {
		s.readFailed(ctx, SliceCurrentExpense, gen, err, applog.FieldExpenseID, id)
		return err
	}

	var (
		settlement   *core.Settlement
		lookupFailed bool
	)
	if e.SettlementID != "" {
		st, err := s.svc.Settlements.GetSettlement(ctx, e.SettlementID)
		if err != nil {
			lookupFailed = true
			applog.FromContext(ctx, s.logger).WarnContext(ctx, "Settlement look-up failed",
				applog.FieldExpenseID, id,
				applog.FieldSettlementID, e.SettlementID,
				applog.FieldError, err)
		} else {
			settlement = &st
		}
	}

	return s.commit(ctx, SliceCurrentExpense, gen, func() bool {
		s.currentExpense = &e
		s.currentSettlement = settlement
		s.syncListedSettlement(e, settlement, lookupFailed)
		return true
	})
}

// syncListedSettlement keeps the expense list's copy of e's settlement in
// step with a fresher selectExpense result. Must be called with s.mu held.
func (s *Store) syncListedSettlement(e core.Expense, settlement *core.Settlement, lookupFailed bool) {
	if s.expenseGroupID != e.GroupID || !slices.ContainsFunc(s.expenses, func(x core.Expense) bool { return x.ID == e.ID }) {
		return
	}
	switch {
	case settlement != nil:
		if s.settlements == nil {
			s.settlements = make(map[string]core.Settlement)
		}
		s.settlements[e.ID] = settlement.Clone()
	case !lookupFailed:
		delete(s.settlements, e.ID)
	}
}

// InvalidateExpense refetches the expense list of the current group and, when
// id is the selected expense, the expense itself.
func (s *Store) InvalidateExpense(ctx context.Context, id string) error {
	groupID, selected := s.selection()

	var errs []error
	if id != "" && id == selected {
		errs = append(errs, quiet(s.selectExpense(ctx, id)))
	}
	if groupID != "" {
		errs = append(errs, quiet(s.refreshExpenses(ctx, groupID)))
	}
	return errors.Join(errs...)
}

// InvalidateSettlement refreshes after a settlement of expenseID changed.
func (s *Store) InvalidateSettlement(ctx context.Context, expenseID string) error {
	groupID, selected := s.selection()

	var errs []error
	if groupID != "" {
		errs = append(errs, quiet(s.refreshExpenses(ctx, groupID)))
	}
	if expenseID != "" && expenseID == selected {
		errs = append(errs, quiet(s.selectExpense(ctx, expenseID)))
	}
	return errors.Join(errs...)
}

// InvalidateAll refreshes the group list and the current group's expenses.
func (s *Store) InvalidateAll(ctx context.Context) error {
	groupID, _ := s.selection()

	errs := []error{quiet(s.refreshGroups(ctx))}
	if groupID != "" {
		errs = append(errs, quiet(s.refreshExpenses(ctx, groupID)))
	}
	return errors.Join(errs...)
}

// ClearSelection drops the current group, its expenses and the current
// expense. In-flight fetches for them are discarded.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	events := s.clearSelectionLocked()
	s.mu.Unlock()
	s.publish(events...)
}

func (s *Store) clearSelectionLocked() []Event {
	var events []Event
	for _, sl := range []Slice{SliceCurrentGroup, SliceExpenses, SliceCurrentExpense} {
		s.started[sl]++
		s.committed[sl] = s.started[sl]
		events = append(events, Event{Slice: sl, Generation: s.started[sl]})
	}
	s.currentGroup = nil
	s.expenseGroupID = ""
	s.expenses = nil
	s.settlements = map[string]core.Settlement{}
	s.currentExpense = nil
	s.currentSettlement = nil
	return events
}

// DeselectExpense clears the current expense when it is id, for example
// after the expense was deleted.
func (s *Store) DeselectExpense(id string) {
	s.mu.Lock()
	if s.currentExpense == nil || s.currentExpense.ID != id {
		s.mu.Unlock()
		return
	}
	s.started[SliceCurrentExpense]++
	gen := s.started[SliceCurrentExpense]
	s.committed[SliceCurrentExpense] = gen
	s.currentExpense = nil
	s.currentSettlement = nil
	s.mu.Unlock()
	s.publish(Event{Slice: SliceCurrentExpense, Generation: gen})
}

// Reset empties the whole cache.
func (s *Store) Reset() {
	s.mu.Lock()
	events := s.clearSelectionLocked()
	s.started[SliceGroups]++
	s.committed[SliceGroups] = s.started[SliceGroups]
	s.groups = nil
	events = append(events, Event{Slice: SliceGroups, Generation: s.started[SliceGroups]})
	s.mu.Unlock()
	s.publish(events...)
}

// readFailed logs with the logger carried by ctx when there is one, so a
// refresh triggered by a remote change is logged with that change.
func (s *Store) readFailed(ctx context.Context, slice Slice, gen uint64, err error, args ...any) {
	args = append(args, applog.NewFields().WithSlice(string(slice), gen).WithError(err).ToSlice()...)
	applog.FromContext(ctx, s.logger).WarnContext(ctx, "Refresh failed, keeping cached data", args...)
}

func (s *Store) selection() (groupID, expenseID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentGroup != nil {
		groupID = s.currentGroup.ID
	}
	if s.currentExpense != nil {
		expenseID = s.currentExpense.ID
	}
	return groupID, expenseID
}

// Groups returns the cached group list.
func (s *Store) Groups() []core.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneGroups(s.groups)
}

// CurrentGroup returns the selected group.
func (s *Store) CurrentGroup() (core.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentGroup == nil {
		return core.Group{}, false
	}
	return s.currentGroup.Clone(), true
}

// Expenses returns the cached expenses of the current group.
func (s *Store) Expenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneExpenses(s.expenses)
}

// Expense looks an expense up in the cached list.
func (s *Store) Expense(id string) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return core.Expense{}, false
}

// CurrentExpense returns the selected expense.
func (s *Store) CurrentExpense() (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentExpense == nil {
		return core.Expense{}, false
	}
	return s.currentExpense.Clone(), true
}

// Settlement returns the cached settlement of an expense.
func (s *Store) Settlement(expenseID string) (core.Settlement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentExpense != nil && s.currentExpense.ID == expenseID && s.currentSettlement != nil {
		return s.currentSettlement.Clone(), true
	}
	st, ok := s.settlements[expenseID]
	if !ok {
		return core.Settlement{}, false
	}
	return st.Clone(), true
}

// Generation returns the token of the data currently held for slice.
func (s *Store) Generation(slice Slice) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed[slice]
}

// Snapshot copies every slice under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Groups:         cloneGroups(s.groups),
		ExpenseGroupID: s.expenseGroupID,
		Expenses:       cloneExpenses(s.expenses),
		Settlements:    make(map[string]core.Settlement, len(s.settlements)),
	}
	for id, st := range s.settlements {
		snap.Settlements[id] = st.Clone()
	}
	if s.currentGroup != nil {
		g := s.currentGroup.Clone()
		snap.CurrentGroup = &g
	}
	if s.currentExpense != nil {
		e := s.currentExpense.Clone()
		snap.CurrentExpense = &e
	}
	if s.currentSettlement != nil {
		st := s.currentSettlement.Clone()
		snap.CurrentSettlement = &st
	}
	return snap
}

func cloneGroups(in []core.Group) []core.Group {
	if in == nil {
		return nil
	}
	out := make([]core.Group, len(in))
	for i, g := range in {
		out[i] = g.Clone()
	}
	return out
}

func cloneExpenses(in []core.Expense) []core.Expense {
	if in == nil {
		return nil
	}
	out := make([]core.Expense, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
