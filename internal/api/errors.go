package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/keywords"
	"github.com/leca/photophriend/internal/model"
)

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse(http.StatusBadRequest, msg))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse(http.StatusUnauthorized, "Authentication required"))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse(http.StatusNotFound, msg))
}

// TooLarge writes a 413 error response.
func TooLarge(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(http.StatusRequestEntityTooLarge, msg))
}

// Unavailable writes a 503 error response.
func Unavailable(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse(http.StatusServiceUnavailable, msg))
}

// StatusOf maps an error class to the HTTP status reported for it.
func StatusOf(err error) int {
	switch {
	case model.ErrValidation.Has(err):
		return http.StatusBadRequest
	case model.ErrNotFound.Has(err):
		return http.StatusNotFound
	case model.ErrConflict.Has(err):
		return http.StatusConflict
	case keywords.Error.Has(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status of its class. Server-side failures
// are logged.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(w, status, ErrorResponse(status, err.Error()))
}
