// Package api holds the request and response helpers shared by the HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/tesouraria/internal/matching"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
	"github.com/MrJamesThe3rd/tesouraria/internal/validate"
)

type errorResponse struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Fail writes a JSON error body.
func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorResponse{Error: msg})
}

// Error maps a domain error to its status code. Unknown errors are logged
// and reported as internal errors without detail.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var closed *period.ClosedError

	switch {
	case errors.As(err, &closed):
		Fail(w, http.StatusConflict, closed.Error())
	case errors.Is(err, movement.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, period.ErrAlreadyClosed),
		errors.Is(err, period.ErrNotClosed),
		errors.Is(err, period.ErrPeriodClosed),
		errors.Is(err, movement.ErrDuplicate),
		errors.Is(err, movement.ErrAnnulled):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, movement.ErrInvalid),
		errors.Is(err, movement.ErrAnnulReason),
		errors.Is(err, period.ErrInvalidReason),
		errors.Is(err, matching.ErrEmptyMapping):
		Fail(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Fail(w, http.StatusInternalServerError, "internal error")
	}
}

// Decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler may continue.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}

	if errs := validate.Struct(v); len(errs) > 0 {
		Fail(w, http.StatusBadRequest, validate.Join(errs))
		return false
	}

	return true
}

// PeriodKey reads the {year} and {month} URL parameters.
func PeriodKey(r *http.Request) (period.Key, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return period.Key{}, fmt.Errorf("invalid year %q", chi.URLParam(r, "year"))
	}

	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return period.Key{}, fmt.Errorf("invalid month %q", chi.URLParam(r, "month"))
	}

	return period.NewKey(year, month)
}

// Money renders an amount with two decimals.
type Money string

type Figures struct {
	Opening Money `json:"opening_balance"`
	Income  Money `json:"total_income"`
	Expense Money `json:"total_expense"`
	Closing Money `json:"closing_balance"`
}

func ToFigures(f *period.Figures) *Figures {
	if f == nil {
		return nil
	}

	return &Figures{
		Opening: Money(f.Opening.StringFixed(2)),
		Income:  Money(f.Income.StringFixed(2)),
		Expense: Money(f.Expense.StringFixed(2)),
		Closing: Money(f.Closing.StringFixed(2)),
	}
}
