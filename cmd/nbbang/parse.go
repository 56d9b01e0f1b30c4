package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nbbang/internal/api"
	"nbbang/internal/coordinator"
	"nbbang/internal/core"
)

var errUsage = errors.New("usage")

func parseMethod(s string) (core.Method, error) {
	switch strings.ToUpper(s) {
	case "N_BUN_1", "EQUAL":
		return core.MethodEqual, nil
	case "DIRECT":
		return core.MethodDirect, nil
	case "PERCENT":
		return core.MethodPercent, nil
	case "ITEM":
		return core.MethodItem, nil
	}
	return "", fmt.Errorf("%w: unknown method %q", errUsage, s)
}

func splitPair(arg string) (string, string, error) {
	user, value, ok := strings.Cut(arg, "=")
	if !ok || user == "" || value == "" {
		return "", "", fmt.Errorf("%w: expected user=value, got %q", errUsage, arg)
	}
	return user, value, nil
}

// parseSettlement turns "settle <expenseID> <method> [shares...]" arguments
// into a settlement input. Shares are user ids for N_BUN_1, user=amount for
// DIRECT and user=percent for PERCENT.
func parseSettlement(args []string) (coordinator.SettlementInput, error) {
	if len(args) < 2 {
		return coordinator.SettlementInput{}, fmt.Errorf("%w: settle <expenseID> <method> [shares...]", errUsage)
	}
	method, err := parseMethod(args[1])
	if err != nil {
		return coordinator.SettlementInput{}, err
	}
	in := coordinator.SettlementInput{ExpenseID: args[0], Method: method}

	for _, arg := range args[2:] {
		switch method {
		case core.MethodEqual:
			for _, id := range strings.Split(arg, ",") {
				if id = strings.TrimSpace(id); id != "" {
					in.Participants = append(in.Participants, id)
				}
			}
		case core.MethodDirect:
			user, value, err := splitPair(arg)
			if err != nil {
				return in, err
			}
			amount, err := core.ParseAmount(value)
			if err != nil {
				return in, fmt.Errorf("amount for %s: %w", user, err)
			}
			in.Amounts = append(in.Amounts, api.AmountShare{UserID: user, Amount: amount})
		case core.MethodPercent:
			user, value, err := splitPair(arg)
			if err != nil {
				return in, err
			}
			pct, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
			if err != nil {
				return in, fmt.Errorf("percent for %s: %w", user, err)
			}
			in.Ratios = append(in.Ratios, api.RatioShare{UserID: user, Percent: pct})
		case core.MethodItem:
			return in, fmt.Errorf("%w: item settlements take no shares", errUsage)
		}
	}
	return in, nil
}
