package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pack-store/internal/model"

	"github.com/rs/zerolog"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, message and error code.
func writeError(w http.ResponseWriter, status int, message, code string, logger zerolog.Logger) {
	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: message, Code: code})
}

// writeServiceError maps a service error to its HTTP response. Domain errors carry their
// own user-facing message; anything else is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		logger.Debug().Err(err).Interface("fields", verr.Fields).Msg("validation failed")
		writeJSON(w, statusFor(verr.Err.Code), model.ErrorResponse{
			Error:   verr.Err.Message,
			Code:    verr.Err.Code,
			Details: verr.Fields,
		})
		return
	}

	var derr *model.DomainError
	if errors.As(err, &derr) {
		writeError(w, statusFor(derr.Code), derr.Message, derr.Code, logger)
		return
	}

	logger.Error().Err(err).Msg("unexpected service error")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error: "internal server error",
		Code:  model.ErrCodeInternalError,
	})
}

// statusFor returns the HTTP status for a domain error code.
func statusFor(code string) int {
	switch code {
	case model.ErrCodeInvalidJSON,
		model.ErrCodeValidation,
		model.ErrCodeEmptyCart,
		model.ErrCodeContactRequired,
		model.ErrCodeInvalidAddress,
		model.ErrCodeProductNotFound,
		model.ErrCodeInvalidQuantity,
		model.ErrCodeInvalidShippingMethod,
		model.ErrCodeInvalidStatus,
		model.ErrCodeInvalidWebhookSignature:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeOrderNotFound:
		return http.StatusNotFound
	case model.ErrCodeOrderExists,
		model.ErrCodePaymentIncomplete,
		model.ErrCodeInvalidStatusTransition:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger zerolog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug().Err(err).Msg("invalid request body")
		writeError(w, http.StatusBadRequest, "invalid request body", model.ErrCodeInvalidJSON, logger)
		return false
	}
	return true
}
