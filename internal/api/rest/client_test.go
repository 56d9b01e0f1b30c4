package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nbbang/internal/api"
	"nbbang/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL + "/", Token: "secret", Timeout: 2 * time.Second}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "://bad"} {
		if _, err := New(Config{BaseURL: raw}, nil); err == nil {
			t.Errorf("New(%q) expected error", raw)
		}
	}
}

func TestListExpensesSendsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/g%201/expenses" && r.URL.Path != "/groups/g 1/expenses" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		json.NewEncoder(w).Encode([]core.Expense{
			{ID: "e1", Title: "dinner", Amount: 30000, SettlementID: "s1"},
			{ID: "e2", Title: "taxi", Amount: 12000},
		})
	})

	got, err := c.ListExpenses(context.Background(), "g 1")
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(got) != 2 || got[0].SettlementID != "s1" || got[1].Amount != 12000 {
		t.Fatalf("unexpected expenses %+v", got)
	}
}

func TestCreateSettlementEncodesRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/settlements" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req api.SettlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Method != core.MethodDirect || len(req.Amounts) != 2 || req.Amounts[1].Amount != 20000 {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(core.Settlement{ID: "s1", ExpenseID: req.ExpenseID, Method: req.Method, Status: core.StatusPending})
	})

	st, err := c.CreateSettlement(context.Background(), api.SettlementRequest{
		ExpenseID: "e1",
		Method:    core.MethodDirect,
		Amounts:   []api.AmountShare{{UserID: "a", Amount: 10000}, {UserID: "b", Amount: 20000}},
	})
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}
	if st.ID != "s1" || st.ExpenseID != "e1" {
		t.Fatalf("unexpected settlement %+v", st)
	}
}

func TestVoteEndpoints(t *testing.T) {
	var toggled []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/votes":
			json.NewEncoder(w).Encode(map[string]string{"voteId": "v1"})
		case r.Method == http.MethodPost && r.URL.Path == "/vote-options/o1/toggle":
			var body toggleRequest
			json.NewDecoder(r.Body).Decode(&body)
			toggled = append(toggled, body.UserID)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/expenses/e1/vote/close":
			json.NewEncoder(w).Encode(map[string]string{"settlementId": "s9"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	voteID, err := c.CreateVote(ctx, "e1")
	if err != nil || voteID != "v1" {
		t.Fatalf("CreateVote = %q, %v", voteID, err)
	}
	if err := c.ToggleVote(ctx, "me", "o1"); err != nil {
		t.Fatalf("ToggleVote: %v", err)
	}
	if len(toggled) != 1 || toggled[0] != "me" {
		t.Fatalf("unexpected toggles %v", toggled)
	}
	settlementID, err := c.CloseVote(ctx, "e1")
	if err != nil || settlementID != "s9" {
		t.Fatalf("CloseVote = %q, %v", settlementID, err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		kind         error
		wantConflict api.Conflict
	}{
		{"not found", http.StatusNotFound, `{"message":"no vote"}`, api.ErrNotFound, ""},
		{"duplicate settlement", http.StatusConflict, `{"code":"DUPLICATE_SETTLEMENT","message":"exists"}`, api.ErrConflict, api.ConflictDuplicateSettlement},
		{"vote closed", http.StatusConflict, `{"code":"VOTE_CLOSED"}`, api.ErrConflict, api.ConflictVoteClosed},
		{"forbidden", http.StatusForbidden, `not yours`, api.ErrUnauthorized, ""},
		{"unauthenticated", http.StatusUnauthorized, ``, api.ErrUnauthorized, ""},
		{"bad request", http.StatusBadRequest, `{"message":"amount mismatch"}`, api.ErrInvalid, ""},
		{"server error", http.StatusBadGateway, ``, api.ErrUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.GetVoteStatus(context.Background(), "e1")
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want kind %v", err, tt.kind)
			}
			var apiErr *api.Error
			if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
				t.Fatalf("expected *api.Error with status %d, got %v", tt.status, err)
			}
			if apiErr.Conflict != tt.wantConflict {
				t.Fatalf("Conflict = %q, want %q", apiErr.Conflict, tt.wantConflict)
			}
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ListMyGroups(context.Background())
	if !errors.Is(err, api.ErrUnavailable) || !api.Retryable(err) {
		t.Fatalf("expected retryable unavailable error, got %v", err)
	}
}
