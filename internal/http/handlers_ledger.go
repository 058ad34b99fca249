package http

import (
	"errors"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/services"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.GetAllAccounts(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err := s.svc.GetAccount(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	a := core.Account{Name: p.Get("name")}
	if a.StartingBalance, err = p.OptionalMoney("starting_balance"); err != nil {
		fail(w, r, err)
		return
	}
	if a.GoalAmount, err = p.OptionalMoney("goal_amount"); err != nil {
		fail(w, r, err)
		return
	}
	if a.AutoSave, err = p.SaveRule("auto_save"); err != nil {
		fail(w, r, err)
		return
	}
	if a.IsDefaultSave, err = p.Bool("is_default_save"); err != nil {
		fail(w, r, err)
		return
	}

	created, err := s.svc.CreateAccount(r.Context(), a)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(created))
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.svc.GetAllBills(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]BillDTO, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	b, err := s.svc.GetBill(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(b))
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	b := core.Bill{
		Name:      p.Get("name"),
		BillType:  p.Get("bill_type"),
		Frequency: core.PaymentFrequency(p.Get("payment_frequency")),
		Notes:     p.Get("notes"),
	}
	if b.TypicalAmount, err = p.OptionalMoney("typical_amount"); err != nil {
		fail(w, r, err)
		return
	}
	if b.StartingBalance, err = p.OptionalMoney("starting_balance"); err != nil {
		fail(w, r, err)
		return
	}
	if b.AmountToSave, err = p.SaveRule("amount_to_save"); err != nil {
		fail(w, r, err)
		return
	}
	if b.IsVariable, err = p.Bool("is_variable"); err != nil {
		fail(w, r, err)
		return
	}

	created, err := s.svc.CreateBill(r.Context(), b)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBillDTO(created))
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := parseBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	amt, err := p.Money("amount")
	if err != nil {
		fail(w, r, err)
		return
	}
	d, err := p.Date("date")
	if err != nil {
		fail(w, r, err)
		return
	}
	week, err := p.Int64("week_number")
	if err != nil {
		fail(w, r, err)
		return
	}
	if d.IsZero() {
		d = core.DateOf(time.Now())
	}

	t, err := s.svc.PayBill(r.Context(), id, amt, d, week)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(t))
}

func (s *Server) handleHistory(entity core.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			fail(w, r, err)
			return
		}
		rows, err := s.svc.GetAccountHistory(r.Context(), id, entity)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toHistoryDTOs(rows))
	}
}

// BalanceDTO reports the cached and derived balances, which agree on a
// healthy ledger. AsOf is set when ?date= was given.
type BalanceDTO struct {
	Entity  string  `json:"account_type"`
	ID      int64   `json:"id"`
	Current Amount  `json:"current"`
	Derived Amount  `json:"derived"`
	AsOf    string  `json:"as_of,omitempty"`
	AtDate  *Amount `json:"balance_at_date,omitempty"`
}

func (s *Server) handleBalance(entity core.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathID(r, "id")
		if err != nil {
			fail(w, r, err)
			return
		}
		on, err := queryDate(r, "date")
		if err != nil {
			fail(w, r, err)
			return
		}
		current, err := s.svc.GetCurrentBalance(ctx, entity, id)
		if err != nil {
			fail(w, r, err)
			return
		}
		derived, err := s.svc.DerivedBalance(ctx, entity, id)
		if err != nil {
			fail(w, r, err)
			return
		}
		out := BalanceDTO{Entity: string(entity), ID: id, Current: amount(current), Derived: amount(derived)}
		if !on.IsZero() {
			at, err := s.svc.BalanceAt(ctx, entity, id, on)
			if err != nil {
				fail(w, r, err)
				return
			}
			a := amount(at)
			out.AsOf, out.AtDate = on.String(), &a
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		f   core.TransactionFilter
		err error
	)
	q := r.URL.Query()
	f.Type = core.TransactionType(q.Get("type"))
	f.AnalyticsOnly = queryBool(r, "analytics_only")
	for _, field := range []struct {
		key string
		dst *int64
	}{{"week", &f.WeekNumber}, {"account_id", &f.AccountID}, {"bill_id", &f.BillID}} {
		if *field.dst, err = queryInt(r, field.key); err != nil {
			fail(w, r, err)
			return
		}
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	f.Limit = int(limit)
	if f.From, err = queryDate(r, "from"); err != nil {
		fail(w, r, err)
		return
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		fail(w, r, err)
		return
	}

	txs, err := s.svc.GetAllTransactions(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	t, err := s.svc.GetTransaction(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := parseBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in := core.NewTransaction{
		Type:        core.TransactionType(p.Get("transaction_type")),
		Description: p.Get("description"),
		Category:    p.Get("category"),
	}
	if in.Amount, err = p.Money("amount"); err != nil {
		fail(w, r, err)
		return
	}
	if in.Date, err = p.Date("date"); err != nil {
		fail(w, r, err)
		return
	}
	if in.WeekNumber, err = p.Int64("week_number"); err != nil {
		fail(w, r, err)
		return
	}
	if in.AccountID, err = p.Int64("account_id"); err != nil {
		fail(w, r, err)
		return
	}
	if in.BillID, err = p.Int64("bill_id"); err != nil {
		fail(w, r, err)
		return
	}
	exclude, err := p.Bool("exclude_from_analytics")
	if err != nil {
		fail(w, r, err)
		return
	}
	in.ExcludeFromAnalytics = exclude

	if in.Date.IsZero() {
		in.Date = core.DateOf(time.Now())
	}
	if in.WeekNumber == 0 {
		week, err := s.svc.GetCurrentWeek(ctx)
		if errors.Is(err, core.ErrNotFound) {
			fail(w, r, core.Invalid("week_number", "no weeks exist yet; process a paycheck first"))
			return
		}
		if err != nil {
			fail(w, r, err)
			return
		}
		in.WeekNumber = week.Number
	}

	t, err := s.svc.AddTransaction(ctx, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(t))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	req := services.TransferRequest{Description: p.Get("description")}
	if req.FromAccountID, err = p.Int64("from_account_id"); err != nil {
		fail(w, r, err)
		return
	}
	if req.ToAccountID, err = p.Int64("to_account_id"); err != nil {
		fail(w, r, err)
		return
	}
	if req.Amount, err = p.Money("amount"); err != nil {
		fail(w, r, err)
		return
	}
	if req.Date, err = p.Date("date"); err != nil {
		fail(w, r, err)
		return
	}
	if req.WeekNumber, err = p.Int64("week_number"); err != nil {
		fail(w, r, err)
		return
	}
	if req.Date.IsZero() {
		req.Date = core.DateOf(time.Now())
	}

	out, in, err := s.svc.Transfer(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]TransactionDTO{
		"withdrawal": toTransactionDTO(out),
		"deposit":    toTransactionDTO(in),
	})
}
