package http

import (
	"net/http"

	"cashcal/internal/core"
	"cashcal/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store(r).ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	WriteJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	c, err := req.category(0)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateCategory(r.Context(), s.store(r), c)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	c, err := req.category(id)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.ledger.UpdateCategory(r.Context(), s.store(r), c)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// handleDeleteCategory removes the category and clears it from the user's
// transactions and schedules.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), s.store(r), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
