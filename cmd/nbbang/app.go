package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"nbbang/internal/amqp"
	"nbbang/internal/api"
	"nbbang/internal/cache"
	"nbbang/internal/cli"
	"nbbang/internal/config"
	"nbbang/internal/coordinator"
	"nbbang/internal/core"
	"nbbang/internal/feed"
	"nbbang/internal/feed/websocket"
	applog "nbbang/internal/log"
	"nbbang/internal/store"
	"nbbang/internal/vote"
)

const cacheSweepInterval = time.Minute

// app holds the wired components for one command invocation.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	out    io.Writer
	errOut io.Writer

	svc     api.Services
	store   *store.Store
	coord   *coordinator.Coordinator
	caches  *cache.Manager
	broker  *amqp.Client
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, out, errOut io.Writer) (*app, error) {
	res, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, out: out, errOut: errOut, svc: res.Services}
	if res.Cleanup != nil {
		a.closers = append(a.closers, res.Cleanup)
	}

	a.store = store.New(res.Services, store.Options{
		Logger:           logger,
		FetchConcurrency: cfg.SettlementFetchConcurrency,
	})

	cacheLogger := logger.WithComponent(applog.ComponentCache)
	sessions := cache.NewLRUCache[*vote.Session](cfg.VoteSessionMax, cfg.VoteSessionTTL,
		cache.WithEvictCallback(func(key string, _ *vote.Session) {
			cacheLogger.Debug("Vote session evicted", "key", key)
		}))
	a.caches = cache.NewManager(cacheLogger.Logger)
	a.caches.Register(sessions)

	var publisher feed.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Writes still work without notifications
			logger.Warn("Failed to initialize AMQP client", applog.FieldError, err)
		} else {
			a.broker = client
			a.closers = append(a.closers, client.Close)
			publisher = client
		}
	}

	a.coord, err = coordinator.New(res.Services, a.store, coordinator.Options{
		UserID:    cfg.UserID,
		Logger:    logger,
		Presenter: coordinator.PresenterFunc(a.notify),
		Publisher: publisher,
		Sessions:  sessions,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// notify prints a notice for the user on errOut.
func (a *app) notify(_ context.Context, n coordinator.Notice) {
	fmt.Fprintf(a.errOut, "%s: %s\n", n.Title, n.Message)
	if n.Action != "" {
		fmt.Fprintf(a.errOut, "  %s\n", n.Action)
	}
	if n.Retry {
		fmt.Fprintln(a.errOut, "  You can retry this.")
	}
}

func (a *app) close() {
	a.caches.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Cleanup failed", applog.FieldError, err)
		}
	}
	a.closers = nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "groups":
		return a.groups(ctx)
	case "expenses":
		if len(args) != 1 {
			return fmt.Errorf("%w: expenses <groupID>", errUsage)
		}
		return a.expenses(ctx, args[0])
	case "expense":
		if len(args) != 1 {
			return fmt.Errorf("%w: expense <expenseID>", errUsage)
		}
		return a.expense(ctx, args[0])
	case "settle":
		in, err := parseSettlement(args)
		if err != nil {
			return err
		}
		return a.settle(ctx, in)
	case "confirm":
		if len(args) != 3 {
			return fmt.Errorf("%w: confirm <expenseID> <debtorID> <creditorID>", errUsage)
		}
		return a.confirm(ctx, args[0], args[1], args[2])
	case "watch":
		if len(args) > 1 {
			return fmt.Errorf("%w: watch [groupID]", errUsage)
		}
		groupID := ""
		if len(args) == 1 {
			groupID = args[0]
		}
		return a.watch(ctx, groupID)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) groups(ctx context.Context) error {
	if err := a.store.RefreshGroups(ctx); err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tOWNER\tMEMBERS")
	for _, g := range a.store.Groups() {
		owner := "-"
		if m, ok := g.Owner(); ok {
			owner = m.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", g.ID, g.Name, owner, len(g.Members))
	}
	return w.Flush()
}

func settlementStatus(e core.Expense, s core.Settlement, ok bool) string {
	switch {
	case ok:
		return fmt.Sprintf("%s %s", s.Method, s.Status)
	case e.VoteID != "":
		return "voting"
	case e.SettlementID != "":
		return "unavailable"
	}
	return "-"
}

func (a *app) expenses(ctx context.Context, groupID string) error {
	if err := a.store.SelectGroup(ctx, groupID); err != nil {
		return err
	}
	group, _ := a.store.CurrentGroup()
	fmt.Fprintf(a.out, "%s (%s)\n\n", group.Name, group.ID)

	w := a.table()
	fmt.Fprintln(w, "ID\tDATE\tTITLE\tAMOUNT\tPAYER\tSETTLEMENT")
	for _, e := range a.store.Expenses() {
		s, ok := a.store.Settlement(e.ID)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.SpentAt.Format(time.DateOnly), e.Title, e.Amount,
			memberName(group, e.PayerID), settlementStatus(e, s, ok))
	}
	return w.Flush()
}

func memberName(g core.Group, userID string) string {
	if m, ok := g.Member(userID); ok && m.Name != "" {
		return m.Name
	}
	return userID
}

func (a *app) expense(ctx context.Context, id string) error {
	if err := a.store.SelectExpense(ctx, id); err != nil {
		return err
	}
	e, _ := a.store.CurrentExpense()
	fmt.Fprintf(a.out, "%s\n  amount:       %s\n  spent:        %s\n  payer:        %s\n  participants: %s\n",
		e.Title, e.Amount, e.SpentAt.Format(time.DateOnly), e.PayerID, strings.Join(e.Participants, ", "))
	if len(e.Items) > 0 {
		fmt.Fprintln(a.out, "  items:")
		for _, it := range e.Items {
			fmt.Fprintf(a.out, "    %-20s %s\n", it.Name, it.Price)
		}
	}

	s, ok := a.store.Settlement(id)
	if !ok {
		fmt.Fprintf(a.out, "\nsettlement: %s\n", settlementStatus(e, s, false))
		return nil
	}
	fmt.Fprintf(a.out, "\nsettlement %s (%s, %s)\n", s.ID, s.Method, s.Status)
	return a.printDetails(s)
}

func (a *app) printDetails(s core.Settlement) error {
	w := a.table()
	fmt.Fprintln(w, "DEBTOR\tCREDITOR\tAMOUNT\tSENT")
	for _, d := range s.Details {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", d.DebtorID, d.CreditorID, d.Amount, d.Sent)
	}
	return w.Flush()
}

func (a *app) settle(ctx context.Context, in coordinator.SettlementInput) error {
	res, err := a.coord.CreateSettlement(ctx, in)
	if err != nil {
		return err
	}
	if res.Settlement == nil {
		fmt.Fprintf(a.out, "vote %s opened for expense %s\n", res.VoteID, in.ExpenseID)
		return nil
	}
	fmt.Fprintf(a.out, "settlement %s created (%s)\n", res.Settlement.ID, res.Settlement.Method)
	return a.printDetails(*res.Settlement)
}

func (a *app) confirm(ctx context.Context, expenseID, debtorID, creditorID string) error {
	s, err := a.coord.ConfirmTransfer(ctx, expenseID, debtorID, creditorID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "settlement %s is %s\n", s.ID, s.Status)
	return nil
}

// watch follows every configured change source until ctx is done, feeding
// each notification to the coordinator so the cache stays current.
func (a *app) watch(ctx context.Context, groupID string) error {
	if a.cfg.FeedURL == "" && a.broker == nil {
		return fmt.Errorf("%w: watch needs FEED_URL or AMQP_URL", errUsage)
	}

	unsubscribe := a.store.Subscribe(func(ev store.Event) {
		a.logger.Info("Cache updated",
			applog.FieldSlice, string(ev.Slice),
			applog.FieldGeneration, ev.Generation)
	})
	defer unsubscribe()

	if err := a.store.RefreshGroups(ctx); err != nil {
		a.logger.Warn("Initial group refresh failed", applog.FieldError, err)
	}
	if groupID != "" {
		if err := a.store.SelectGroup(ctx, groupID); err != nil {
			return err
		}
	}
	a.caches.StartCleanup(ctx, cacheSweepInterval)

	feedLogger := a.logger.WithComponent(applog.ComponentFeed)
	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.FeedURL != "" {
		sub, err := websocket.NewSubscriber(websocket.Config{
			URL:     a.cfg.FeedURL,
			Token:   a.cfg.APIToken,
			GroupID: groupID,
		}, feedLogger.Logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return sub.Run(ctx, a.coord.HandleChange) })
	}
	if a.broker != nil {
		g.Go(func() error { return a.broker.Consume(ctx, a.coord.HandleChange) })
	}

	feedLogger.Info("Watching for changes", applog.FieldGroupID, groupID)
	return g.Wait()
}
