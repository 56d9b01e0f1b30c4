package core

import (
	"errors"
	"testing"
)

func TestMoneyValidate(t *testing.T) {
	if err := Money(1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := Money(0).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := Money(-3).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out Money
		ok  bool
	}{
		{"1", 1, true},
		{"30000", 30000, true},
		{"30,000", 30000, true},
		{" 1 000 ", 1000, true},
		{"1_500", 1500, true},
		{"12.50", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{",", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Title:        "dinner",
		Amount:       30000,
		PayerID:      "u1",
		Participants: []string{"u1", "u2"},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(*Expense)
		want   error
	}{
		{func(e *Expense) { e.Title = "  " }, ErrEmptyTitle},
		{func(e *Expense) { e.Amount = 0 }, ErrInvalidAmount},
		{func(e *Expense) { e.PayerID = "" }, ErrNoPayer},
		{func(e *Expense) { e.Participants = nil }, ErrNoParticipants},
		{func(e *Expense) { e.Items = []Item{{Name: "x", Price: 0}} }, ErrInvalidAmount},
	}
	for i, tc := range bads {
		e := good.Clone()
		tc.mutate(&e)
		if err := e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestExpenseCheckItems(t *testing.T) {
	e := Expense{Amount: 300, Items: []Item{{Name: "a", Price: 100}, {Name: "b", Price: 200}}}
	if err := e.CheckItems(); err != nil {
		t.Fatalf("expected matching breakdown, got %v", err)
	}
	e.Amount = 301
	if err := e.CheckItems(); !errors.Is(err, ErrItemsMismatch) {
		t.Fatalf("expected ErrItemsMismatch, got %v", err)
	}
	e.Items = nil
	if err := e.CheckItems(); err != nil {
		t.Fatalf("no breakdown should pass, got %v", err)
	}
}

func TestGroupOwnerInvariant(t *testing.T) {
	g := Group{Members: []Member{
		{UserID: "a", Role: RoleOwner},
		{UserID: "b", Role: RoleMember},
	}}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	owner, ok := g.Owner()
	if !ok || owner.UserID != "a" {
		t.Fatalf("unexpected owner %+v", owner)
	}

	g.Members[1].Role = RoleOwner
	if err := g.Validate(); !errors.Is(err, ErrOwnerCount) {
		t.Fatalf("expected ErrOwnerCount, got %v", err)
	}
	if err := (Group{}).Validate(); !errors.Is(err, ErrOwnerCount) {
		t.Fatalf("expected ErrOwnerCount for empty group, got %v", err)
	}
}

func TestSettlementAllSent(t *testing.T) {
	s := Settlement{Details: []SettlementDetail{{Sent: true}, {Sent: false}}}
	if s.AllSent() {
		t.Fatal("expected not all sent")
	}
	s.Details[1].Sent = true
	if !s.AllSent() {
		t.Fatal("expected all sent")
	}
	if (Settlement{}).AllSent() {
		t.Fatal("settlement without rows is never complete")
	}
}

func TestVoteSelectedByAndClone(t *testing.T) {
	v := Vote{Options: []VoteOption{
		{ID: "1", Voters: []string{"u1", "u2"}},
		{ID: "2", Voters: []string{"u2"}},
		{ID: "3", Voters: []string{"u1"}},
	}}
	got := v.SelectedBy("u1")
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("unexpected selection %v", got)
	}

	c := v.Clone()
	c.Options[0].Voters[0] = "zz"
	if v.Options[0].Voters[0] != "u1" {
		t.Fatal("clone shares voter slice with original")
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		in   Money
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{30000, "30,000"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(tt.in), got, tt.want)
		}
		if tt.in >= 0 {
			back, err := ParseAmount(tt.in.String())
			if tt.in > 0 && (err != nil || back != tt.in) {
				t.Errorf("ParseAmount(%q) = %d, %v", tt.in.String(), back, err)
			}
		}
	}
}
