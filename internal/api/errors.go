package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Israelam72/mini-seller-console/internal/crm"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeErrorBody(w, code, errType, fmt.Sprintf(format, args...), nil)
}

func writeErrorBody(w http.ResponseWriter, code int, errType, msg string, extra map[string]any) {
	body := map[string]any{
		"message": msg,
		"type":    errType,
	}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"error": body})
}

// writeError maps domain errors onto HTTP status codes and error types.
func writeError(w http.ResponseWriter, err error) {
	var verr *crm.ValidationError
	var terr *crm.TransientError

	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, http.StatusUnprocessableEntity, "validation_error", err.Error(),
			map[string]any{"fields": verr.Fields})
	case errors.As(err, &terr):
		writeErrorBody(w, http.StatusServiceUnavailable, "transient_error", err.Error(),
			map[string]any{"committed": terr.Committed})
	case errors.Is(err, crm.ErrPartialConversion):
		writeErrorBody(w, http.StatusInternalServerError, "partial_conversion", err.Error(), nil)
	case errors.Is(err, crm.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, crm.ErrStorageUnavailable):
		writeErrorBody(w, http.StatusInternalServerError, "storage_error", err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErrorBody(w, http.StatusServiceUnavailable, "api_error", err.Error(), nil)
	default:
		writeErrorBody(w, http.StatusInternalServerError, "api_error", err.Error(), nil)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
