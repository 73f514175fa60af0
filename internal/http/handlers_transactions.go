package http

import (
	"net/http"

	"cashcal/internal/core"
	"cashcal/internal/log"
)

// handleListTransactions lists the user's transactions, optionally bounded
// by the from and to query dates.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseOptionalDate(query, "from")
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	to, err := parseOptionalDate(query, "to")
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to.Time) {
		s.fail(w, r, log.OpList, badRequest("from must not be after to"))
		return
	}

	txs, err := s.store(r).ListTransactions(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	WriteJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	t, err := s.store(r).GetTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	t, err := req.transaction(0)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateTransaction(r.Context(), s.store(r), t)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleUpdateTransaction replaces the editable fields. The schedule link
// is kept.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	t, err := req.transaction(id)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}

	store := s.store(r)
	current, err := store.GetTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	t.ScheduleID = current.ScheduleID

	updated, err := s.ledger.UpdateTransaction(r.Context(), store, t)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), s.store(r), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
