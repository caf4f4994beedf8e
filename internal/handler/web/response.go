package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusOf maps the error taxonomy onto HTTP.
func StatusOf(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidAddress, model.KindBadRequest:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("RESPONSE_WRITE_FAILED", "err", err)
	}
}

// Error writes err with its public message. Internal causes are logged, never returned.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "REQUEST_FAILED",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
	}
	JSON(w, status, &ErrorResponse{
		Kind:    string(model.KindOf(err)),
		Message: model.PublicMessage(err),
	})
}
