package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/flatmate/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a hub
// client bound to the request's user. Browser origins must be in
// allowedOrigins.
func HandleWebSocket(hub *Hub, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	patterns := originHosts(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: patterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err, "user_id", u.ID)
			return
		}

		client := NewClient(hub, conn, u.ID)
		client.Run(r.Context())
	}
}

func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if parsed, err := url.Parse(o); err == nil && parsed.Host != "" {
			hosts = append(hosts, parsed.Host)
		}
	}
	return hosts
}
