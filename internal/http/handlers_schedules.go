package http

import (
	"net/http"

	"cashcal/internal/core"
	"cashcal/internal/log"
)

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store(r).ListSchedules(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if rules == nil {
		rules = []core.ScheduleRule{}
	}
	WriteJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	rule, err := s.store(r).GetSchedule(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	WriteJSON(w, http.StatusOK, rule)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	rule, err := req.schedule(0)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateSchedule(r.Context(), s.store(r), rule)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	rule, err := req.schedule(id)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.ledger.UpdateSchedule(r.Context(), s.store(r), rule)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// handleDeleteSchedule unlinks the schedule's transactions, or with
// delete_future=true deletes the unconfirmed ones.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	deleteFuture, err := parseBool(r.URL.Query(), "delete_future")
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteSchedule(r.Context(), s.store(r), id, deleteFuture); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
