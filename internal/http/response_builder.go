package http

import (
	"context"
	"encoding/json"
	"net/http"

	"uangku/internal/core"
	"uangku/internal/log"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch core.ErrorKind(err) {
	case "validation_failed":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "no_history":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := core.ErrorKind(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(ctx).ErrorContext(ctx, "Request failed", log.NewFields().WithError(err).ToSlice()...)
	}
	writeJSON(w, status, errorBody{Error: kind, Message: err.Error()})
}
