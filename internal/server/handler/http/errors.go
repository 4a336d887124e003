package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/linkvault/internal/access"
	"github.com/atinyakov/linkvault/internal/service"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	codeValidation   = "VALIDATION_ERROR"
	codeUnauthorized = "UNAUTHORIZED"
	codeInternal     = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// decisionStatus maps a denied access decision to its HTTP status and message.
func decisionStatus(d access.Decision) (int, string) {
	switch d {
	case access.PasswordRequired:
		return http.StatusUnauthorized, "Password required"
	case access.InvalidPassword:
		return http.StatusUnauthorized, "Invalid password"
	case access.Expired:
		return http.StatusForbidden, "Link expired"
	case access.LimitReached:
		return http.StatusForbidden, "View limit reached"
	default:
		return http.StatusNotFound, "Invalid link or content deleted"
	}
}

// fail writes the response for a service error. Anything that is not an
// access decision or a validation problem becomes a generic 500.
func fail(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	if d, ok := service.DecisionOf(err); ok {
		status, msg := decisionStatus(d)
		writeError(w, status, msg, d.Code())
		return
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Msg, codeValidation)
		return
	}
	if errors.Is(err, service.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "Authentication required", codeUnauthorized)
		return
	}
	log.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed", codeInternal)
}
