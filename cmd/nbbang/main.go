package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"nbbang/internal/cli"
)

const usage = `usage: nbbang <command> [args]

commands:
  groups                                  list your groups
  expenses <groupID>                      list a group's expenses with settlement status
  expense <expenseID>                     show one expense and its settlement
  settle <expenseID> <method> [shares...] create a settlement (n_bun_1, direct, percent, item)
  confirm <expenseID> <debtor> <creditor> mark one transfer as sent
  watch [groupID]                         follow change notifications and keep the cache fresh
`

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := cli.SignalContext(logger)
	a, err := newApp(ctx, cfg, logger, os.Stdout, os.Stderr)
	if err != nil {
		stop()
		cli.Fatal(logger, "Failed to initialize", err)
	}

	err = a.run(ctx, os.Args[1], os.Args[2:])
	a.close()
	stop()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	default:
		cli.Fatal(logger, "Command failed", err)
	}
}
