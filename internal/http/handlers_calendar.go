package http

import (
	"net/http"

	"cashcal/internal/calendar"
	"cashcal/internal/core"
	"cashcal/internal/log"
)

type calendarResponse struct {
	calendar.Calendar
	Overview core.RangeOverview `json:"overview"`
	// Warnings name the schedules left out because they are malformed.
	Warnings []string `json:"warnings,omitempty"`
}

// handleCalendar returns one entry per day of the requested range with the
// running balance.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	cal, err := s.calendars.Calendar(r.Context(), s.store(r), start, end)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	resp := calendarResponse{Calendar: cal, Overview: cal.Overview()}
	for _, ruleErr := range cal.RuleErrors {
		resp.Warnings = append(resp.Warnings, ruleErr.Error())
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleProjection materialises schedule occurrences up to end_date as
// unconfirmed transactions, or queues that work when a broker is set.
// An empty body uses the default horizon.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, log.OpProject, err)
			return
		}
	}

	result, err := s.projections.Request(r.Context(), s.store(r), req.EndDate)
	if err != nil {
		s.fail(w, r, log.OpProject, err)
		return
	}
	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, result)
}
