package http

import (
	"net/http"
	"time"

	"budget/internal/core"
)

func (s *Server) handleProcessPaycheck(w http.ResponseWriter, r *http.Request) {
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
	if d.IsZero() {
		d = core.DateOf(time.Now())
	}

	res, err := s.svc.ProcessPaycheck(r.Context(), amt, d)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaycheckDTO(res))
}

func (s *Server) handleListWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.svc.GetAllWeeks(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]WeekDTO, 0, len(weeks))
	for _, wk := range weeks {
		out = append(out, toWeekDTO(wk))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCurrentWeek(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.WeekSummary(r.Context(), 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekSummaryDTO(sum))
}

func (s *Server) handleWeekSummary(w http.ResponseWriter, r *http.Request) {
	n, err := pathID(r, "n")
	if err != nil {
		fail(w, r, err)
		return
	}
	sum, err := s.svc.WeekSummary(r.Context(), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekSummaryDTO(sum))
}

func (s *Server) handleCloseWeek(w http.ResponseWriter, r *http.Request) {
	n, err := pathID(r, "n")
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := s.svc.CloseWeek(r.Context(), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Applied {
		status = http.StatusCreated
	}
	writeJSON(w, status, toRolloverDTO(res))
}

func (s *Server) handleCloseElapsed(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.CloseElapsedWeeks(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]RolloverDTO, 0, len(results))
	for _, res := range results {
		out = append(out, toRolloverDTO(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePayPeriod(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "week")
	if err != nil {
		fail(w, r, err)
		return
	}
	sum, err := s.svc.PayPeriodSummary(r.Context(), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayPeriodDTO(sum))
}
