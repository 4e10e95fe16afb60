package fantasy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flit/fantasy-engine/internal/draft"
	"github.com/flit/fantasy-engine/internal/history"
	"github.com/flit/fantasy-engine/internal/matchup"
	"github.com/flit/fantasy-engine/internal/portfolio"
	"github.com/flit/fantasy-engine/internal/store"
)

var (
	ErrInvalidInput    = errors.New("fantasy: invalid input")
	ErrUnauthorized    = errors.New("fantasy: authentication required")
	ErrForbidden       = errors.New("fantasy: not allowed")
	ErrNotMember       = errors.New("fantasy: user is not a member of this league")
	ErrAlreadyMember   = errors.New("fantasy: user is already a member of this league")
	ErrLeagueFull      = errors.New("fantasy: league is full")
	ErrLeagueClosed    = errors.New("fantasy: league no longer accepts changes")
	ErrLeagueNotActive = errors.New("fantasy: league is not active")
	ErrInvalidJoinCode = errors.New("fantasy: join code must be 6 characters")
	ErrDraftInProgress = errors.New("fantasy: draft is in progress")
	ErrNoPortfolio     = errors.New("fantasy: portfolio not found")
	ErrTradeDeadline   = errors.New("fantasy: trade deadline has passed")
	ErrTradeNotPending = errors.New("fantasy: trade is no longer pending")
	ErrTradeExpired    = errors.New("fantasy: trade has expired")
	ErrAssetNotOwned   = errors.New("fantasy: asset is not owned by that member")
	ErrAssetOwned      = errors.New("fantasy: asset is already owned in this league")
	ErrDuplicateClaim  = errors.New("fantasy: claim for this asset already pending")
	ErrAuthDisabled    = errors.New("fantasy: token issuing is disabled")
	errNothingToDraft  = errors.New("fantasy: no draftable assets left")
)

// statusFor maps an error from any layer to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, matchup.ErrNotFound),
		errors.Is(err, ErrNoPortfolio):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidJoinCode),
		errors.Is(err, portfolio.ErrInvalidAmount),
		errors.Is(err, portfolio.ErrInvalidShares),
		errors.Is(err, portfolio.ErrUnknownAssetClass),
		errors.Is(err, portfolio.ErrInvalidLineup),
		errors.Is(err, portfolio.ErrSlotNotFound),
		errors.Is(err, matchup.ErrInvalidWeek),
		errors.Is(err, draft.ErrPoolTooSmall),
		errors.Is(err, history.ErrUnknownTimeFrame):
		return http.StatusBadRequest

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotMember),
		errors.Is(err, portfolio.ErrAssetLocked):
		return http.StatusForbidden

	case errors.Is(err, ErrAuthDisabled):
		return http.StatusNotImplemented

	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrLeagueFull),
		errors.Is(err, ErrLeagueClosed),
		errors.Is(err, ErrLeagueNotActive),
		errors.Is(err, ErrDraftInProgress),
		errors.Is(err, ErrTradeDeadline),
		errors.Is(err, ErrTradeNotPending),
		errors.Is(err, ErrTradeExpired),
		errors.Is(err, ErrAssetNotOwned),
		errors.Is(err, ErrAssetOwned),
		errors.Is(err, ErrDuplicateClaim),
		errors.Is(err, draft.ErrNotPending),
		errors.Is(err, draft.ErrNotActive),
		errors.Is(err, draft.ErrNotPaused),
		errors.Is(err, draft.ErrInvalidTurn),
		errors.Is(err, draft.ErrAssetUnavailable),
		errors.Is(err, draft.ErrNoMembers),
		errors.Is(err, portfolio.ErrInsufficientFunds):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errorCodes name each status class in the "error" field of responses.
var errorCodes = map[int]string{
	http.StatusBadRequest:          "validation_failed",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusNotImplemented:      "not_implemented",
	http.StatusInternalServerError: "internal",
}

// writeErr maps err to a status and writes it. Internal errors are logged
// and their detail withheld from the client.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, "internal server error", status)
		return
	}
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	code, ok := errorCodes[status]
	if !ok {
		code = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
