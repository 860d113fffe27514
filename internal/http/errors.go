package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/identity"
	"github.com/example/roadside-matching/internal/logging"
)

const kindUnauthenticated = "unauthenticated"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err in the shared error envelope. Authorization and
// transition messages are shown as is; unclassified errors are hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		status := statusFor(ae.Kind)
		msg := ae.Message
		if ae.Kind == apperr.KindUnavailable {
			logging.FromContext(r.Context(), s.logger).Warn("collaborator unavailable", "error", err)
		}
		writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(ae.Kind), Message: msg, Field: ae.Field}})
	case errors.Is(err, identity.ErrCertificateFetch):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{Kind: string(apperr.KindUnavailable), Message: err.Error()}})
	case isAuthError(err):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: kindUnauthenticated, Message: err.Error()}})
	default:
		logging.FromContext(r.Context(), s.logger).Error("unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Kind: "internal", Message: "internal error"}})
	}
}

func isAuthError(err error) bool {
	for _, target := range []error{
		identity.ErrNoToken, identity.ErrInvalidToken, identity.ErrTokenExpired,
		identity.ErrTokenRevoked, identity.ErrUserDisabled, identity.ErrMissingRole,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
