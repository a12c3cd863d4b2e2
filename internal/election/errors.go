package election

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by the phase controller and ballot ledger. Every
// command recovers errors at its boundary and reports one of these; nothing
// in this package panics past a handler.
const (
	KindValidation           = "validation_error"
	KindNotFound             = "not_found"
	KindPhaseMismatch        = "phase_mismatch"
	KindNotEligibleVoter     = "not_eligible_voter"
	KindNotEligibleCandidate = "not_eligible_candidate"
	KindPreconditionFailed   = "precondition_failed"
	KindConcurrencyConflict  = "concurrency_conflict"
)

type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

func (e *Error) Error() string { return e.Message }

func newError(kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func notFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func phaseMismatchf(format string, args ...interface{}) *Error {
	return newError(KindPhaseMismatch, format, args...)
}

func preconditionf(format string, args ...interface{}) *Error {
	return newError(KindPreconditionFailed, format, args...)
}

func conflictf(format string, args ...interface{}) *Error {
	return newError(KindConcurrencyConflict, format, args...)
}

func statusFor(kind string) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotEligibleVoter, KindNotEligibleCandidate:
		return http.StatusForbidden
	case KindPhaseMismatch, KindConcurrencyConflict:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a command error onto the HTTP response. Unclassified
// errors are reported as 500 without leaking internals to voters.
func writeError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(e.Kind))
	json.NewEncoder(w).Encode(e)
}
