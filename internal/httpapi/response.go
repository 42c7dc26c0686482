package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/store/pg"
	"github.com/MrEthical07/authcore/internal/throttle"
	"github.com/MrEthical07/authcore/middleware"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// Client-facing codes for the unauthorized class. Which check failed
// (password, inactive account, expiry, signature, consumed session) is kept
// out of the response.
const (
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeInvalidToken       = "INVALID_TOKEN"
)

func writeInvalidCredentials(w http.ResponseWriter) {
	writeErrorCode(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password")
}

func writeInvalidToken(w http.ResponseWriter) {
	writeErrorCode(w, http.StatusUnauthorized, codeInvalidToken, "Invalid or expired token")
}

// writeError maps domain errors to a status and a stable code. Messages
// never echo the underlying error text.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeInvalidCredentials(w)
	case errors.Is(err, authcore.ErrInactiveUser),
		errors.Is(err, authcore.ErrExpiredToken),
		errors.Is(err, authcore.ErrMalformedToken),
		errors.Is(err, authcore.ErrUnknownOrConsumedSession):
		writeInvalidToken(w)
	case errors.Is(err, authcore.ErrDuplicateName):
		writeErrorCode(w, http.StatusConflict, "ALREADY_EXISTS", "Already exists")
	case errors.Is(err, authcore.ErrUnknownPermission), errors.Is(err, pg.ErrUnknownRole):
		writeErrorCode(w, http.StatusBadRequest, "UNKNOWN_REFERENCE", "Unknown role or permission")
	case errors.Is(err, authcore.ErrUserNotFound):
		writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, throttle.ErrThrottled):
		w.Header().Set("Retry-After", "60")
		writeErrorCode(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many failed logins")
	default:
		status := middleware.StatusFor(err)
		code := "INTERNAL_ERROR"
		switch status {
		case http.StatusServiceUnavailable:
			code = "UNAVAILABLE"
		case http.StatusUnauthorized:
			code = "UNAUTHORIZED"
		case http.StatusForbidden:
			code = "FORBIDDEN"
		}
		writeErrorCode(w, status, code, http.StatusText(status))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return false
	}
	return true
}
