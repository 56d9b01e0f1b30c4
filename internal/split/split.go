// Package split validates participant input for the four settlement methods
// before a settlement request is sent. The server computes the authoritative
// split; these checks reject exactly what it would reject.
package split

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"nbbang/internal/core"
)

// PercentTolerance is how far the sum of PERCENT ratios may drift from 100.
const PercentTolerance = 0.1

var (
	ErrEmptyParticipants = errors.New("must have at least one participant")
	ErrItemsRequired     = errors.New("item method requires an item breakdown")
	ErrDuplicateUser     = errors.New("participant listed more than once")
)

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.NewFromFloat(PercentTolerance)
)

// AmountMismatchError reports DIRECT amounts that do not add up to the total.
type AmountMismatchError struct {
	Sum   core.Money
	Total core.Money
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amounts sum to %d, expected %d (difference %d)", e.Sum, e.Total, e.Diff())
}

// Diff is Total minus Sum: positive when the entries fall short.
func (e *AmountMismatchError) Diff() core.Money {
	return e.Total - e.Sum
}

// PercentMismatchError reports PERCENT ratios whose sum is outside tolerance.
type PercentMismatchError struct {
	Sum decimal.Decimal
}

func (e *PercentMismatchError) Error() string {
	return fmt.Sprintf("percentages sum to %s, expected 100 (±%v)", e.Sum.String(), PercentTolerance)
}

// InvalidShareError reports one participant's entry that can never be valid
// on its own: a DIRECT amount that is not positive, or a PERCENT ratio that is
// negative or not a number.
type InvalidShareError struct {
	UserID string
	Value  string
}

func (e *InvalidShareError) Error() string {
	return fmt.Sprintf("invalid share %s for %s", e.Value, e.UserID)
}

func checkUnique(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateUser, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Entry is a DIRECT amount for one participant.
type Entry struct {
	UserID string
	Amount core.Money
}

// Ratio is a PERCENT share for one participant.
type Ratio struct {
	UserID  string
	Percent float64
}

// Share is a per-participant amount for display.
type Share struct {
	UserID string
	Amount core.Money
}

// EqualSplit is the display result of an N_BUN_1 split.
//
// Remainder is total - PerPerson*Count. It is reported, never assigned to a
// participant: the backend owns that allocation.
type EqualSplit struct {
	PerPerson core.Money
	Count     int
	Remainder core.Money
}

// Equal returns floor(total / len(participants)).
func Equal(total core.Money, participants []string) (EqualSplit, error) {
	if len(participants) == 0 {
		return EqualSplit{}, ErrEmptyParticipants
	}
	if err := checkUnique(participants); err != nil {
		return EqualSplit{}, err
	}
	n := core.Money(len(participants))
	per := total / n
	return EqualSplit{
		PerPerson: per,
		Count:     len(participants),
		Remainder: total - per*n,
	}, nil
}

// Direct accepts positive entries only when they sum to total exactly.
// A sum that would overflow is reported as a mismatch, capped at MaxInt64.
func Direct(total core.Money, entries []Entry) ([]Share, error) {
	var sum core.Money
	shares := make([]Share, 0, len(entries))
	for i, e := range entries {
		if e.Amount <= 0 {
			return nil, &InvalidShareError{UserID: e.UserID, Value: e.Amount.String()}
		}
		if e.Amount > total-sum {
			return nil, &AmountMismatchError{Sum: overflowSum(sum, entries[i:]), Total: total}
		}
		sum += e.Amount
		shares = append(shares, Share{UserID: e.UserID, Amount: e.Amount})
	}
	if sum != total {
		return nil, &AmountMismatchError{Sum: sum, Total: total}
	}
	if err := checkUnique(userIDs(entries)); err != nil {
		return nil, err
	}
	return shares, nil
}

// overflowSum adds rest to sum, saturating at MaxInt64. Non-positive entries
// are skipped.
func overflowSum(sum core.Money, rest []Entry) core.Money {
	for _, e := range rest {
		if e.Amount <= 0 {
			continue
		}
		if e.Amount > math.MaxInt64-sum {
			return math.MaxInt64
		}
		sum += e.Amount
	}
	return sum
}

func userIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	return ids
}

// Percent accepts ratios whose sum is within PercentTolerance of 100, the
// boundary itself excluded, and returns floor(total*ratio/100) per participant.
// The display amounts need not add up to total.
func Percent(total core.Money, ratios []Ratio) ([]Share, error) {
	sum := decimal.Zero
	for _, r := range ratios {
		if r.Percent < 0 || math.IsNaN(r.Percent) || math.IsInf(r.Percent, 0) {
			return nil, &InvalidShareError{UserID: r.UserID, Value: fmt.Sprintf("%v%%", r.Percent)}
		}
		sum = sum.Add(decimal.NewFromFloat(r.Percent))
	}
	if !sum.Sub(hundred).Abs().LessThan(tolerance) {
		return nil, &PercentMismatchError{Sum: sum}
	}
	ids := make([]string, len(ratios))
	for i, r := range ratios {
		ids[i] = r.UserID
	}
	if err := checkUnique(ids); err != nil {
		return nil, err
	}

	base := decimal.NewFromInt(int64(total))
	shares := make([]Share, 0, len(ratios))
	for _, r := range ratios {
		amount := base.Mul(decimal.NewFromFloat(r.Percent)).Div(hundred).Floor()
		shares = append(shares, Share{UserID: r.UserID, Amount: core.Money(amount.IntPart())})
	}
	return shares, nil
}

// Item only checks that there is a breakdown to vote on.
func Item(items []core.Item) error {
	if len(items) == 0 {
		return ErrItemsRequired
	}
	return nil
}

// Request is everything a settlement form collects.
type Request struct {
	Method       core.Method
	Total        core.Money
	Participants []string
	Amounts      []Entry
	Ratios       []Ratio
	Items        []core.Item
}

// Validate runs the check that matches req.Method.
func Validate(req Request) error {
	var err error
	switch req.Method {
	case core.MethodEqual:
		_, err = Equal(req.Total, req.Participants)
	case core.MethodDirect:
		_, err = Direct(req.Total, req.Amounts)
	case core.MethodPercent:
		_, err = Percent(req.Total, req.Ratios)
	case core.MethodItem:
		err = Item(req.Items)
	default:
		err = fmt.Errorf("%w: %q", core.ErrUnknownMethod, req.Method)
	}
	return err
}
