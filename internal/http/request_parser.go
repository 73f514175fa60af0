// This file parses and validates request data: JSON bodies, path ids and
// date ranges from the query string.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashcal/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON object from the body into dst.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest("malformed JSON")
		case errors.As(err, &typeErr):
			return badRequest(fmt.Sprintf("invalid value for field %q", typeErr.Field))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest("unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		case core.IsValidation(err):
			return err
		default:
			return badRequest("invalid request body: " + err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest("invalid id")
	}
	return id, nil
}

// parseOptionalDate parses key from query; an absent value is the zero Date.
func parseOptionalDate(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest(fmt.Sprintf("invalid %s date %q: expected YYYY-MM-DD", key, v))
	}
	return d, nil
}

// parseRange reads the calendar window from start and end, or from
// date=YYYY-MM meaning the whole month. Both bounds are required otherwise.
func parseRange(query url.Values) (start, end core.Date, err error) {
	if month := strings.TrimSpace(query.Get("date")); month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return core.Date{}, core.Date{}, badRequest(fmt.Sprintf("invalid month %q: expected YYYY-MM", month))
		}
		start = core.NewDate(t.Year(), int(t.Month()), 1)
		end = core.NewDate(t.Year(), int(t.Month()), core.DaysInMonth(t.Year(), int(t.Month())))
		return start, end, nil
	}

	if start, err = parseOptionalDate(query, "start"); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if end, err = parseOptionalDate(query, "end"); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if start.IsZero() || end.IsZero() {
		return core.Date{}, core.Date{}, badRequest("start and end are required")
	}
	return start, end, nil
}

// parseBool reads an optional boolean flag. Absent means false.
func parseBool(query url.Values, key string) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest(fmt.Sprintf("invalid %s value %q", key, v))
	}
	return b, nil
}
