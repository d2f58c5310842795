package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"streamflix/authd/internal/auth"
	"streamflix/authd/internal/policy"
)

type errorResponse struct {
	Error struct {
		Code     string   `json:"code"`
		Message  string   `json:"message"`
		Attempts int      `json:"attempts,omitempty"`
		Reasons  []string `json:"reasons,omitempty"`
	} `json:"error"`
	State auth.State `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, msg string) {
	var res errorResponse
	res.Error.Code = code
	res.Error.Message = msg
	writeJSON(w, status, res)
}

var kindStatus = map[auth.Kind]int{
	auth.KindValidation:         http.StatusBadRequest,
	auth.KindEncoding:           http.StatusBadRequest,
	auth.KindInvalidPhone:       http.StatusBadRequest,
	auth.KindDuplicateUsername:  http.StatusConflict,
	auth.KindAccountLocked:      http.StatusLocked,
	auth.KindInvalidCredentials: http.StatusUnauthorized,
	auth.KindCodeNotFound:       http.StatusUnauthorized,
	auth.KindCodeExpired:        http.StatusUnauthorized,
	auth.KindCodeMismatch:       http.StatusUnauthorized,
	auth.KindCodeAttempts:       http.StatusUnauthorized,
	auth.KindSessionInvalid:     http.StatusUnauthorized,
	auth.KindUserNotFound:       http.StatusNotFound,
	auth.KindDelivery:           http.StatusBadGateway,
	auth.KindStore:              http.StatusInternalServerError,
}

// writeAuthError renders an *auth.Error with its kind as the error code.
// Anything else is reported as an internal error without detail.
func writeAuthError(w http.ResponseWriter, err error) {
	writeFlowError(w, err, "")
}

// writeFlowError is writeAuthError plus the caller's next sign-in state.
func writeFlowError(w http.ResponseWriter, err error, state auth.State) {
	var e *auth.Error
	if !errors.As(err, &e) {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	var res errorResponse
	res.State = state
	res.Error.Code = string(e.Kind)
	res.Error.Message = e.Message
	res.Error.Attempts = e.Attempts
	var v *policy.Violation
	if errors.As(err, &v) {
		res.Error.Reasons = v.Reasons
	}
	writeJSON(w, status, res)
}
