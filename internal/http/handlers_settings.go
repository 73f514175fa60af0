package http

import (
	"errors"
	"net/http"

	"cashcal/internal/core"
	"cashcal/internal/log"
	"cashcal/internal/tenant"
)

// handleGetSettings returns the user's settings. Users created before
// settings existed get the defaults.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	store := s.store(r)
	settings, err := store.GetSettings(r.Context())
	if errors.Is(err, tenant.ErrNotFound) {
		settings, err = core.DefaultSettings(store.UserID(), core.Today()), nil
	}
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings merges the request into the stored settings.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}

	store := s.store(r)
	current, err := store.GetSettings(r.Context())
	if errors.Is(err, tenant.ErrNotFound) {
		current, err = core.DefaultSettings(store.UserID(), core.Today()), nil
	}
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}

	next, err := req.apply(current)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	saved, err := s.ledger.SaveSettings(r.Context(), store, next)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}
