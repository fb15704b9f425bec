package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/model"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth resolves the bearer token and attaches the user to the request
// context. Websocket upgrades may pass the token as ?token= since browsers
// cannot set headers on them.
func RequireAuth(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := resolver.Resolve(r.Context(), bearerToken(r))
			if err != nil {
				var appErr *apperr.Error
				if errors.As(err, &appErr) {
					w.Header().Set("WWW-Authenticate", "Bearer")
					writeError(w, http.StatusUnauthorized, apperr.ErrUnauthenticated)
					return
				}
				logger.Error("resolve identity", "error", err, "request_id", RequestIDFrom(r.Context()))
				writeError(w, http.StatusInternalServerError, &apperr.Error{Code: "INTERNAL", Message: "internal server error"})
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, e *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": e.Message, "code": e.Code})
}
