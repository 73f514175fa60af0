// Package http serves the cashcal JSON API.
//
// This file builds JSON responses and maps errors to status codes in one
// place so every handler reports failures the same way.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cashcal/internal/auth"
	"cashcal/internal/calendar"
	"cashcal/internal/core"
	"cashcal/internal/log"
	"cashcal/internal/services"
	"cashcal/internal/tenant"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

// Write encodes body, or sends no body for 204 and a nil body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter, body any) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	NewJSONResponse().Status(status).Write(w, body)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// requestError is malformed client input, reported with its message.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// errorStatus chooses the status and client-facing message for err.
// Internal errors never leak their text.
func errorStatus(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case isBadRange(err):
		return http.StatusBadRequest, rootMessage(err, isBadRange)
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, tenant.ErrNotFound):
		return http.StatusNotFound, "not found"
	case isUnprocessable(err):
		return http.StatusUnprocessableEntity, rootMessage(err, isUnprocessable)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rootMessage drops the operation prefixes added while err travelled up
// through the services, keeping the innermost message that still matches.
func rootMessage(err error, match func(error) bool) string {
	for next := errors.Unwrap(err); next != nil && match(next) && strings.HasSuffix(err.Error(), next.Error()); next = errors.Unwrap(next) {
		err = next
	}
	return err.Error()
}

func isBadRange(err error) bool {
	return errors.Is(err, calendar.ErrInvalidRange) ||
		errors.Is(err, services.ErrRangeTooLong) ||
		errors.Is(err, services.ErrProjectionTooFar)
}

func isUnprocessable(err error) bool {
	return core.IsValidation(err) || errors.Is(err, calendar.ErrInvalidScheduleRule)
}

// fail writes err as a JSON error and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logs.LogError(r.Context(), "Request failed", err, op, log.NewFields().WithComponent(log.ComponentHTTP))
	}
	WriteError(w, status, msg)
}
