package http

import (
	"net/http"

	"budget/internal/core"
)

func (s *Server) handleListReimbursements(w http.ResponseWriter, r *http.Request) {
	state := core.ReimbursementState(r.URL.Query().Get("state"))
	items, err := s.svc.ListReimbursements(r.Context(), state)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]ReimbursementDTO, 0, len(items))
	for _, it := range items {
		out = append(out, toReimbursementDTO(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddReimbursement(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in := core.Reimbursement{
		State:    core.ReimbursementState(p.Get("state")),
		Notes:    p.Get("notes"),
		Category: p.Get("category"),
		Location: p.Get("location"),
	}
	if in.Amount, err = p.Money("amount"); err != nil {
		fail(w, r, err)
		return
	}
	if in.Date, err = p.Date("date"); err != nil {
		fail(w, r, err)
		return
	}

	created, err := s.svc.AddReimbursement(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReimbursementDTO(created))
}

func (s *Server) handleSetReimbursementState(w http.ResponseWriter, r *http.Request) {
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
	updated, err := s.svc.SetReimbursementState(r.Context(), id, core.ReimbursementState(p.Get("state")))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReimbursementDTO(updated))
}

func (s *Server) handleDeleteReimbursement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.svc.DeleteReimbursement(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReimbursementTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.svc.ReimbursementTotals(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]Amount{
		"pending":     amount(totals.Pending),
		"outstanding": amount(totals.Outstanding),
		"reimbursed":  amount(totals.Reimbursed),
	})
}
