package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mock-exam-service/internal/domain"
)

const submitFailedMessage = "submission failed, please retry"

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the failure with its category and answers with a message that does
// not echo internal identifiers. Validation details are safe to return.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log.Printf("%s %s: %s: %v", r.Method, r.URL.Path, domain.ErrorCategory(err), err)
	msg := http.StatusText(status)
	if errors.Is(err, domain.ErrMalformedInput) {
		msg = err.Error()
	}
	respondJSON(w, status, errorBody{Error: msg})
}

// respondSubmitError keeps the status but always shows the generic submission message.
func respondSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log.Printf("%s %s: submit %s: %v", r.Method, r.URL.Path, domain.ErrorCategory(err), err)
	respondJSON(w, status, errorBody{Error: submitFailedMessage})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Malformed("invalid json body: %v", err)
	}
	return nil
}
