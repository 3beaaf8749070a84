package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jovenlab/sportal/internal/bracket"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	http.Error(w, msg, http.StatusNotFound)
}

func Forbidden(w http.ResponseWriter, msg string, err error) {
	slog.Warn("forbidden", "message", msg, "error", err)
	http.Error(w, msg, http.StatusForbidden)
}

// StatusFor maps an error to the HTTP status of its class.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, bracket.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, bracket.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, bracket.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bracket.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes a page-level error response for err.
func Error(w http.ResponseWriter, msg string, err error) {
	switch StatusFor(err) {
	case http.StatusBadRequest:
		BadRequest(w, err.Error(), err)
	case http.StatusForbidden:
		Forbidden(w, msg, err)
	case http.StatusNotFound:
		NotFound(w, msg, err)
	case http.StatusConflict:
		slog.Warn("conflict", "message", msg, "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		InternalServerError(w, msg, err)
	}
}
