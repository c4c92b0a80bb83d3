package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"olympus.fund/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// storeStatus maps the store's sentinel errors onto an HTTP status and a
// wire-level code. Unknown errors map to (0, "") and are treated as internal.
func storeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrMemberNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, store.ErrInsufficientMerchantFloat):
		return http.StatusUnprocessableEntity, "insufficient_merchant_float"
	case errors.Is(err, store.ErrChainIntegrity):
		return http.StatusConflict, "referral_chain_integrity"
	case errors.Is(err, store.ErrPackageDisabled):
		return http.StatusConflict, "package_disabled"
	case errors.Is(err, store.ErrPackageExists):
		return http.StatusConflict, "package_exists"
	case errors.Is(err, store.ErrNotReady):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, store.ErrInvalidClaim):
		return http.StatusConflict, "invalid_claim"
	case errors.Is(err, store.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, store.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	case errors.Is(err, store.ErrPendingDepositExists):
		return http.StatusConflict, "pending_deposit_exists"
	default:
		return 0, ""
	}
}

// fail records the failed operation and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, operation string, err error) {
	s.metrics.Observe(operation, err)
	status, code := storeStatus(err)
	if status == 0 {
		s.logger.Error(operation+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeError(w, status, code)
}

func (s *Server) ok(operation string) {
	s.metrics.Observe(operation, nil)
}

func errInvalidField(name string) error {
	return fmt.Errorf("invalid %s", name)
}
