package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
)

// confirmationRequired answers an unconfirmed destructive request with the
// record it would change.
func confirmationRequired(w http.ResponseWriter, action string, t core.Transaction) {
	writeJSON(w, http.StatusPreconditionRequired, map[string]any{
		"error":       action + " requires confirmation; repeat the request with ?confirm=true",
		"transaction": toTransactionDTO(t),
	})
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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
	if !confirmed(r) {
		t, err := s.svc.GetTransaction(ctx, id)
		if err != nil {
			fail(w, r, err)
			return
		}
		confirmationRequired(w, "edit", t)
		return
	}

	t, err := s.svc.EditTransactionAmount(ctx, id, amt)
	if err != nil {
		fail(w, r, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Transaction edited via API",
		log.FieldTransactionID, id,
		log.FieldAmountCents, amt.Cents,
		log.FieldOperation, log.OpEdit)
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if !confirmed(r) {
		t, err := s.svc.GetTransaction(ctx, id)
		if err != nil {
			fail(w, r, err)
			return
		}
		confirmationRequired(w, "delete", t)
		return
	}

	if err := s.svc.DeleteTransaction(ctx, id); err != nil {
		fail(w, r, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Transaction deleted via API",
		log.FieldTransactionID, id,
		log.FieldOperation, log.OpDelete)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(entity core.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			fail(w, r, err)
			return
		}
		report, err := s.svc.AuditAndRepair(r.Context(), entity, id, false)
		if err != nil && errorStatus(err) != http.StatusConflict {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAuditDTO(report))
	}
}

// handleAuditAll audits every ledger. With ?repair=true it rebuilds the
// broken ones.
func (s *Server) handleAuditAll(w http.ResponseWriter, r *http.Request) {
	repair := queryBool(r, "repair")
	reports, err := s.svc.AuditAll(r.Context(), repair)
	if err != nil && errorStatus(err) != http.StatusConflict {
		fail(w, r, err)
		return
	}
	out := make([]AuditDTO, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toAuditDTO(rep))
	}
	writeJSON(w, http.StatusOK, out)
}
