package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jovenlab/sportal/internal/bracket"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// ReadJSON decodes the request body into v. An empty body leaves v as is.
// Malformed input is reported as a validation error.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body: %w", bracket.ErrValidation, err)
	}
	return nil
}

// JSONError writes err as {"error": "..."} with the status of its class.
// Internal errors are logged and hidden from the client.
func JSONError(w http.ResponseWriter, msg string, err error) {
	status := StatusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		body.Error = http.StatusText(status)
	} else {
		slog.Warn(msg, "status", status, "error", err)
	}
	WriteJSON(w, status, body)
}
