package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-escrow-market.git/internal/catalog"
	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	"github.com/ariefcatur/go-escrow-market.git/internal/ledger"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the service error taxonomy onto HTTP codes: validation
// 400, authorization 403, missing records 404, state conflicts 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, escrow.ErrDisputeNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, escrow.ErrAlreadyProcessed),
		errors.Is(err, escrow.ErrNotClaimable),
		errors.Is(err, orders.ErrAlreadyDisputed),
		errors.Is(err, orders.ErrCooldownActive),
		errors.Is(err, orders.ErrPaused),
		errors.Is(err, escrow.ErrExists):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, catalog.ErrUnavailable),
		errors.Is(err, orders.ErrPaymentMismatch),
		errors.Is(err, orders.ErrMixedSellers),
		errors.Is(err, orders.ErrSellerUnknown):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, catalog.ErrInconsistent):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func actorID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
