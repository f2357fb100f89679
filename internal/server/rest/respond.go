package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/services"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v. Malformed bodies are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return common.NewValidationError("", "invalid request body: %v", err)
	}
	return nil
}

// statusFor maps a service error to its HTTP status and user-visible detail.
func statusFor(err error) (int, string) {
	var ve *common.ValidationError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Error()
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, common.ErrEmailNotVerified):
		return http.StatusForbidden, "Email not verified"
	case errors.Is(err, common.ErrEmailAlreadyRegistered):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, common.ErrInvalidOrExpiredCode):
		return http.StatusBadRequest, "Invalid or expired code"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, common.ErrCapsuleLocked):
		return http.StatusForbidden, "Capsule is still locked"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "You do not have access to this capsule"
	case errors.Is(err, common.ErrCapsuleUnlocked):
		return http.StatusBadRequest, "Capsule is already unlocked"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrMediaTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "File exceeds the 50 MB limit"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *RESTServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err,
			"request_id", requestIDFrom(r.Context()))
	} else {
		s.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Detail: detail})
}
