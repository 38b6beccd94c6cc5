package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/matzehuels/crateintel/pkg/auth"
	"github.com/matzehuels/crateintel/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeError maps the error taxonomy to HTTP statuses. Everything the
// pipeline recovers from never reaches here; what does is limited to
// authorization, entitlement, rate, quota, and validation failures plus
// genuine internals.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeUnauthorized, errors.ErrCodeKeyExpired:
		status = http.StatusUnauthorized
	case errors.ErrCodeTierForbidden:
		status = http.StatusForbidden
	case errors.ErrCodeRateLimited, errors.ErrCodeQuotaExceeded:
		status = http.StatusTooManyRequests
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidCrate, errors.ErrCodeInvalidDepth:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeCrateNotFound:
		status = http.StatusNotFound
	}
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeErrorBody(w, status, string(code), errors.UserMessage(err))
}

// setRateHeaders surfaces the sliding-window state on every billed
// response, allowed or rejected.
func setRateHeaders(w http.ResponseWriter, d auth.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	w.Header().Set("X-RateLimit-Used", strconv.Itoa(d.Used))
}
