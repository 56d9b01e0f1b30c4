package split

import (
	"errors"
	"math"
	"testing"

	"nbbang/internal/core"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name         string
		total        core.Money
		participants []string
		wantPer      core.Money
		wantRem      core.Money
		wantErr      error
	}{
		{name: "100 over three floors to 33", total: 100, participants: []string{"a", "b", "c"}, wantPer: 33, wantRem: 1},
		{name: "exact split", total: 30000, participants: []string{"a", "b", "c"}, wantPer: 10000, wantRem: 0},
		{name: "single participant", total: 7, participants: []string{"a"}, wantPer: 7, wantRem: 0},
		{name: "no participants", total: 100, participants: nil, wantErr: ErrEmptyParticipants},
		{name: "duplicate participant", total: 100, participants: []string{"a", "a", "b"}, wantErr: ErrDuplicateUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Equal(tt.total, tt.participants)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Equal() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got.PerPerson != tt.wantPer {
				t.Errorf("PerPerson = %d, want %d", got.PerPerson, tt.wantPer)
			}
			if got.Remainder != tt.wantRem {
				t.Errorf("Remainder = %d, want %d", got.Remainder, tt.wantRem)
			}
			if got.Count != len(tt.participants) {
				t.Errorf("Count = %d, want %d", got.Count, len(tt.participants))
			}
		})
	}
}

func TestDirect(t *testing.T) {
	tests := []struct {
		name     string
		total    core.Money
		amounts  []core.Money
		wantDiff core.Money
		wantErr  bool
	}{
		{name: "exact sum", total: 30000, amounts: []core.Money{10000, 10000, 10000}},
		{name: "one short", total: 30000, amounts: []core.Money{10000, 10000, 9999}, wantErr: true, wantDiff: 1},
		{name: "one over", total: 30000, amounts: []core.Money{10000, 10000, 10001}, wantErr: true, wantDiff: -1},
		{name: "uneven but exact", total: 100, amounts: []core.Money{1, 99}},
		{name: "no entries", total: 100, amounts: nil, wantErr: true, wantDiff: 100},
		{name: "wrapping sum", total: 1, amounts: []core.Money{math.MaxInt64, math.MaxInt64, 3}, wantErr: true, wantDiff: 1 - math.MaxInt64},
		{name: "huge entry after partial sum", total: 100, amounts: []core.Money{50, math.MaxInt64}, wantErr: true, wantDiff: 100 - math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]Entry, len(tt.amounts))
			for i, a := range tt.amounts {
				entries[i] = Entry{UserID: string(rune('a' + i)), Amount: a}
			}

			shares, err := Direct(tt.total, entries)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Direct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if len(shares) != len(entries) {
					t.Fatalf("got %d shares, want %d", len(shares), len(entries))
				}
				return
			}

			var mismatch *AmountMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected AmountMismatchError, got %T", err)
			}
			if mismatch.Total != tt.total {
				t.Errorf("Total = %d, want %d", mismatch.Total, tt.total)
			}
			if mismatch.Diff() != tt.wantDiff {
				t.Errorf("Diff() = %d, want %d", mismatch.Diff(), tt.wantDiff)
			}
		})
	}
}

func TestDirectRejectsNonPositiveEntries(t *testing.T) {
	tests := []struct {
		name    string
		total   core.Money
		entries []Entry
		user    string
	}{
		{name: "negative balanced by larger", total: 100, entries: []Entry{{"a", -5}, {"b", 105}}, user: "a"},
		{name: "zero entry", total: 100, entries: []Entry{{"a", 100}, {"b", 0}}, user: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Direct(tt.total, tt.entries)
			var invalid *InvalidShareError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidShareError, got %v", err)
			}
			if invalid.UserID != tt.user {
				t.Errorf("UserID = %q, want %q", invalid.UserID, tt.user)
			}
		})
	}
}

func TestDirectDuplicateUser(t *testing.T) {
	_, err := Direct(100, []Entry{{"a", 50}, {"a", 50}})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("err = %v, want ErrDuplicateUser", err)
	}
}

func TestPercentRejectsInvalidRatios(t *testing.T) {
	tests := []struct {
		name   string
		ratios []Ratio
	}{
		{name: "negative balanced by larger", ratios: []Ratio{{"a", 150}, {"b", -50}}},
		{name: "not a number", ratios: []Ratio{{"a", 100}, {"b", math.NaN()}}},
		{name: "infinite", ratios: []Ratio{{"a", math.Inf(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Percent(100, tt.ratios)
			var invalid *InvalidShareError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidShareError, got %v", err)
			}
		})
	}

	if _, err := Percent(100, []Ratio{{"a", 50}, {"a", 50}}); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate ratio: err = %v, want ErrDuplicateUser", err)
	}
}

func TestPercentTolerance(t *testing.T) {
	tests := []struct {
		name   string
		ratios []float64
		ok     bool
	}{
		{name: "exactly 100", ratios: []float64{50, 50}, ok: true},
		{name: "99.95 passes", ratios: []float64{99.95}, ok: true},
		{name: "100.05 passes", ratios: []float64{50, 50.05}, ok: true},
		{name: "100.1 fails", ratios: []float64{100.1}, ok: false},
		{name: "split 100.1 fails", ratios: []float64{50, 50.1}, ok: false},
		{name: "99.9 fails", ratios: []float64{33.3, 33.3, 33.3}, ok: false},
		{name: "empty fails", ratios: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratios := make([]Ratio, len(tt.ratios))
			for i, r := range tt.ratios {
				ratios[i] = Ratio{UserID: string(rune('a' + i)), Percent: r}
			}
			_, err := Percent(1000, ratios)
			if tt.ok && err != nil {
				t.Fatalf("expected pass, got %v", err)
			}
			if !tt.ok {
				var mismatch *PercentMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("expected PercentMismatchError, got %v", err)
				}
			}
		})
	}
}

func TestPercentDisplayAmounts(t *testing.T) {
	shares, err := Percent(30000, []Ratio{
		{UserID: "a", Percent: 33.3},
		{UserID: "b", Percent: 33.3},
		{UserID: "c", Percent: 33.4},
	})
	if err != nil {
		t.Fatalf("Percent() error = %v", err)
	}
	want := []core.Money{9990, 9990, 10020}
	for i, s := range shares {
		if s.Amount != want[i] {
			t.Errorf("share %d = %d, want %d", i, s.Amount, want[i])
		}
	}

	// floor truncation: 100 * 33.33% = 33.33 -> 33, shares do not sum to total
	shares, err = Percent(100, []Ratio{
		{UserID: "a", Percent: 33.33},
		{UserID: "b", Percent: 33.33},
		{UserID: "c", Percent: 33.34},
	})
	if err != nil {
		t.Fatalf("Percent() error = %v", err)
	}
	var sum core.Money
	for _, s := range shares {
		if s.Amount != 33 {
			t.Errorf("share for %s = %d, want 33", s.UserID, s.Amount)
		}
		sum += s.Amount
	}
	if sum != 99 {
		t.Errorf("sum = %d, want 99", sum)
	}
}

func TestValidate(t *testing.T) {
	items := []core.Item{{Name: "pizza", Price: 20000}, {Name: "beer", Price: 10000}}

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{name: "equal ok", req: Request{Method: core.MethodEqual, Total: 100, Participants: []string{"a", "b"}}},
		{name: "equal empty", req: Request{Method: core.MethodEqual, Total: 100}, wantErr: ErrEmptyParticipants},
		{name: "item ok", req: Request{Method: core.MethodItem, Total: 30000, Items: items}},
		{name: "item without breakdown", req: Request{Method: core.MethodItem, Total: 30000}, wantErr: ErrItemsRequired},
		{name: "unknown method", req: Request{Method: "SPLIT_ANY", Total: 1}, wantErr: core.ErrUnknownMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	err := Validate(Request{
		Method:  core.MethodDirect,
		Total:   30000,
		Amounts: []Entry{{"a", 10000}, {"b", 10000}, {"c", 9999}},
	})
	var mismatch *AmountMismatchError
	if !errors.As(err, &mismatch) || mismatch.Diff() != 1 {
		t.Fatalf("expected mismatch of 1, got %v", err)
	}
}
