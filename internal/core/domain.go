package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

// Settlement methods. The wire names are the ones the backend uses.
const (
	MethodEqual   Method = "N_BUN_1"
	MethodDirect  Method = "DIRECT"
	MethodPercent Method = "PERCENT"
	MethodItem    Method = "ITEM"
)

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

type (
	Role   string
	Method string
	Status string

	Member struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Role   Role   `json:"role"`
	}

	Group struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Members    []Member `json:"members"`
		InviteCode string   `json:"inviteCode"`
	}

	// Item is one line of an expense's optional breakdown.
	Item struct {
		Name  string `json:"name"`
		Price Money  `json:"price"`
	}

	Expense struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Amount       Money     `json:"amount"`
		SpentAt      time.Time `json:"spentAt"`
		PayerID      string    `json:"payerId"`
		GroupID      string    `json:"groupId"`
		Participants []string  `json:"participants"`
		Items        []Item    `json:"items,omitempty"`
		SettlementID string    `json:"settlementId,omitempty"`
		VoteID       string    `json:"voteId,omitempty"`
	}

	// SettlementDetail is one debtor→creditor transfer. Only Sent changes after creation.
	SettlementDetail struct {
		DebtorID     string `json:"debtorId"`
		DebtorName   string `json:"debtorName"`
		CreditorID   string `json:"creditorId"`
		CreditorName string `json:"creditorName"`
		Amount       Money  `json:"amount"`
		Sent         bool   `json:"sent"`
	}

	Settlement struct {
		ID        string             `json:"id"`
		ExpenseID string             `json:"expenseId"`
		Method    Method             `json:"method"`
		Status    Status             `json:"status"`
		Details   []SettlementDetail `json:"details"`
	}

	VoteOption struct {
		ID       string   `json:"id"`
		ItemName string   `json:"itemName"`
		Price    Money    `json:"price"`
		Voters   []string `json:"voters"`
	}

	Vote struct {
		ID        string       `json:"id"`
		ExpenseID string       `json:"expenseId"`
		PayerID   string       `json:"payerId"`
		Closed    bool         `json:"closed"`
		Options   []VoteOption `json:"options"`
	}
)

var (
	ErrEmptyTitle       = errors.New("empty title")
	ErrNoParticipants   = errors.New("expense needs at least one participant")
	ErrNoPayer          = errors.New("expense needs a payer")
	ErrItemsMismatch    = errors.New("amount does not match item breakdown")
	ErrOwnerCount       = errors.New("group must have exactly one owner")
	ErrUnknownMethod    = errors.New("unknown settlement method")
	ErrSettlementDetail = errors.New("invalid settlement detail")
)

func (m Method) IsValid() bool {
	switch m {
	case MethodEqual, MethodDirect, MethodPercent, MethodItem:
		return true
	default:
		return false
	}
}

// Owner returns the single OWNER member.
func (g Group) Owner() (Member, bool) {
	for _, m := range g.Members {
		if m.Role == RoleOwner {
			return m, true
		}
	}
	return Member{}, false
}

func (g Group) Member(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

func (g Group) Validate() error {
	owners := 0
	for _, m := range g.Members {
		if m.Role == RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		return ErrOwnerCount
	}
	return nil
}

func (g Group) Clone() Group {
	g.Members = slices.Clone(g.Members)
	return g
}

// ItemsTotal sums the item breakdown.
func (e Expense) ItemsTotal() Money {
	var total Money
	for _, it := range e.Items {
		total += it.Price
	}
	return total
}

func (e Expense) HasItems() bool {
	return len(e.Items) > 0
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.PayerID) == "" {
		return ErrNoPayer
	}
	if len(e.Participants) == 0 {
		return ErrNoParticipants
	}
	for _, it := range e.Items {
		if strings.TrimSpace(it.Name) == "" {
			return errors.New("item name cannot be empty")
		}
		if err := it.Price.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CheckItems enforces amount == sum(items) when a breakdown is present.
// Callers may skip it once the user confirmed the override.
func (e Expense) CheckItems() error {
	if e.HasItems() && e.ItemsTotal() != e.Amount {
		return ErrItemsMismatch
	}
	return nil
}

func (e Expense) Clone() Expense {
	e.Participants = slices.Clone(e.Participants)
	e.Items = slices.Clone(e.Items)
	return e
}

func (d SettlementDetail) Validate() error {
	if d.DebtorID == "" || d.CreditorID == "" || d.DebtorID == d.CreditorID {
		return ErrSettlementDetail
	}
	return d.Amount.Validate()
}

// AllSent reports whether every detail row has been marked sent.
func (s Settlement) AllSent() bool {
	if len(s.Details) == 0 {
		return false
	}
	for _, d := range s.Details {
		if !d.Sent {
			return false
		}
	}
	return true
}

func (s Settlement) Clone() Settlement {
	s.Details = slices.Clone(s.Details)
	return s
}

func (o VoteOption) HasVoter(userID string) bool {
	return slices.Contains(o.Voters, userID)
}

// SelectedBy returns the ids of the options userID currently votes for.
func (v Vote) SelectedBy(userID string) []string {
	var ids []string
	for _, o := range v.Options {
		if o.HasVoter(userID) {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (v Vote) Clone() Vote {
	opts := make([]VoteOption, len(v.Options))
	for i, o := range v.Options {
		o.Voters = slices.Clone(o.Voters)
		opts[i] = o
	}
	v.Options = opts
	return v
}
