package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"budget/internal/services"
	"budget/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	svc, err := services.NewLedgerService(repo, services.Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}
	srv := NewServer(":0", svc, Options{MetricsEnabled: true})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func call(t *testing.T, srv *Server, method, path, body string, out any) int {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if out != nil && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr.Code
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestLedgerFlow(t *testing.T) {
	srv := newTestServer(t)

	var acct AccountDTO
	if code := call(t, srv, http.MethodPost, "/api/accounts", `{"name":"Emergency","starting_balance":"100","auto_save":"50"}`, &acct); code != http.StatusCreated {
		t.Fatalf("create account status=%d", code)
	}
	var bill BillDTO
	if code := call(t, srv, http.MethodPost, "/api/bills", `{"name":"Rent","amount_to_save":"10%"}`, &bill); code != http.StatusCreated {
		t.Fatalf("create bill status=%d", code)
	}
	if bill.Frequency != "monthly" {
		t.Errorf("bill frequency = %q, want monthly", bill.Frequency)
	}

	var pay PaycheckDTO
	if code := call(t, srv, http.MethodPost, "/api/paychecks", `{"amount":1000,"date":"2025-01-03"}`, &pay); code != http.StatusCreated {
		t.Fatalf("paycheck status=%d", code)
	}
	if pay.Residual.Cents != 85000 || pay.Week1.RunningTotal.Cents != 42500 || pay.Week2.RunningTotal.Cents != 42500 {
		t.Errorf("paycheck = residual %d weeks %d/%d", pay.Residual.Cents, pay.Week1.RunningTotal.Cents, pay.Week2.RunningTotal.Cents)
	}

	var keep, drop TransactionDTO
	if code := call(t, srv, http.MethodPost, "/api/transactions",
		`{"transaction_type":"spending","amount":"25","date":"2025-01-04","week_number":1,"category":"Food"}`, &keep); code != http.StatusCreated {
		t.Fatalf("add spending status=%d", code)
	}
	if code := call(t, srv, http.MethodPost, "/api/transactions",
		`{"transaction_type":"spending","amount":"10","date":"2025-01-05","week_number":1}`, &drop); code != http.StatusCreated {
		t.Fatalf("add spending status=%d", code)
	}

	var pending map[string]any
	if code := call(t, srv, http.MethodDelete, "/api/transactions/"+itoa(drop.ID), "", &pending); code != http.StatusPreconditionRequired {
		t.Fatalf("unconfirmed delete status=%d", code)
	}
	if code := call(t, srv, http.MethodDelete, "/api/transactions/"+itoa(drop.ID)+"?confirm=true", "", nil); code != http.StatusNoContent {
		t.Fatalf("confirmed delete status=%d", code)
	}

	var sum WeekSummaryDTO
	if code := call(t, srv, http.MethodGet, "/api/weeks/1/summary", "", &sum); code != http.StatusOK {
		t.Fatalf("summary status=%d", code)
	}
	if sum.Current.Cents != 40000 || len(sum.ByCategory) != 1 {
		t.Errorf("week 1 summary = %+v", sum)
	}

	var closed RolloverDTO
	if code := call(t, srv, http.MethodPost, "/api/weeks/1/close", "", &closed); code != http.StatusCreated {
		t.Fatalf("close status=%d", code)
	}
	if !closed.Applied || closed.Amount.Cents != 40000 || closed.Transaction == nil {
		t.Errorf("close = %+v", closed)
	}
	if code := call(t, srv, http.MethodPost, "/api/weeks/1/close", "", &closed); code != http.StatusOK || closed.Applied {
		t.Errorf("second close status=%d applied=%v", code, closed.Applied)
	}

	var errResp ErrorResponse
	if code := call(t, srv, http.MethodPatch, "/api/transactions/"+itoa(closed.Transaction.ID)+"?confirm=true", `{"amount":"1"}`, &errResp); code != http.StatusBadRequest {
		t.Errorf("edit rollover status=%d", code)
	}
	if code := call(t, srv, http.MethodPost, "/api/weeks/2/close", "", &errResp); code != http.StatusConflict {
		t.Errorf("close without successor status=%d", code)
	}

	var bal BalanceDTO
	if code := call(t, srv, http.MethodGet, "/api/accounts/"+itoa(acct.ID)+"/balance?date=2025-01-02", "", &bal); code != http.StatusOK {
		t.Fatalf("balance status=%d", code)
	}
	if bal.Current.Cents != 15000 || bal.Derived.Cents != 15000 || bal.AtDate == nil || bal.AtDate.Cents != 10000 {
		t.Errorf("balance = %+v", bal)
	}

	var history []HistoryDTO
	if code := call(t, srv, http.MethodGet, "/api/bills/"+itoa(bill.ID)+"/history", "", &history); code != http.StatusOK {
		t.Fatalf("history status=%d", code)
	}
	if len(history) != 2 || history[1].RunningTotal.Cents != 10000 {
		t.Errorf("bill history = %+v", history)
	}

	var audits []AuditDTO
	if code := call(t, srv, http.MethodPost, "/api/audit", "", &audits); code != http.StatusOK || len(audits) != 0 {
		t.Errorf("audit status=%d reports=%+v", code, audits)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name, method, path, body string
		want                     int
		field                    string
	}{
		{"missing account", http.MethodGet, "/api/accounts/99", "", http.StatusNotFound, ""},
		{"bad id", http.MethodGet, "/api/accounts/abc", "", http.StatusBadRequest, "id"},
		{"zero amount", http.MethodPost, "/api/paychecks", `{"amount":"0","date":"2025-01-03"}`, http.StatusBadRequest, "amount"},
		{"no weeks yet", http.MethodPost, "/api/transactions", `{"transaction_type":"spending","amount":"5"}`, http.StatusBadRequest, "week_number"},
		{"unknown reimbursement state", http.MethodGet, "/api/reimbursements?state=lost", "", http.StatusBadRequest, "state"},
		{"malformed body", http.MethodPost, "/api/accounts", `{"name":`, http.StatusBadRequest, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			if code := call(t, srv, tt.method, tt.path, tt.body, &resp); code != tt.want {
				t.Fatalf("status=%d want %d (%+v)", code, tt.want, resp)
			}
			if resp.Field != tt.field {
				t.Errorf("field = %q, want %q", resp.Field, tt.field)
			}
		})
	}
}

func TestReimbursementEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var created ReimbursementDTO
	if code := call(t, srv, http.MethodPost, "/api/reimbursements", `{"amount":"42","category":"Travel"}`, &created); code != http.StatusCreated {
		t.Fatalf("add status=%d", code)
	}
	if created.State != "pending" || created.Date != "2025-01-20" {
		t.Errorf("created = %+v", created)
	}

	var updated ReimbursementDTO
	if code := call(t, srv, http.MethodPatch, "/api/reimbursements/"+itoa(created.ID), `{"state":"submitted"}`, &updated); code != http.StatusOK {
		t.Fatalf("state status=%d", code)
	}
	if updated.SubmittedDate != "2025-01-20" {
		t.Errorf("updated = %+v", updated)
	}

	var totals map[string]Amount
	if code := call(t, srv, http.MethodGet, "/api/reimbursements/totals", "", &totals); code != http.StatusOK {
		t.Fatalf("totals status=%d", code)
	}
	if totals["outstanding"].Cents != 4200 {
		t.Errorf("totals = %+v", totals)
	}
	if code := call(t, srv, http.MethodDelete, "/api/reimbursements/"+itoa(created.ID), "", nil); code != http.StatusNoContent {
		t.Errorf("delete status=%d", code)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
