// Package handler exposes the account, house and task services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/middleware"
	"github.com/dukerupert/flatmate/internal/websocket"
)

// Broadcaster delivers live updates to a set of users.
type Broadcaster interface {
	BroadcastTo(userIDs []int64, msg websocket.Message)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message, "code": "VALIDATION"})
}

// writeError answers with the status and code of an *apperr.Error. Any other
// error is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperr.KindUnauthenticated {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": appErr.Message, "code": appErr.Code})
		return
	}

	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.RequestIDFrom(r.Context()),
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error", "code": "INTERNAL"})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
