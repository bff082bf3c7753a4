package realtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mmynk/familyfunds/internal/auth"
)

// Handler upgrades authenticated requests to realtime connections.
type Handler struct {
	hub      *Hub
	jwt      *auth.JWTManager
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. allowedOrigin "*" accepts any Origin.
func NewHandler(hub *Hub, jwt *auth.JWTManager, allowedOrigin string) *Handler {
	return &Handler{
		hub: hub,
		jwt: jwt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if allowedOrigin == "*" || origin == "" {
					return true
				}
				return strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

// ServeHTTP validates the bearer token before upgrading. The token comes
// from the Authorization header or, for browsers, the "token" query value.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		t, err := auth.BearerToken(header)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token = t
	}
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := h.jwt.Validate(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h.hub, conn, claims.UserID)
	h.hub.register(c)
	h.hub.logger.Debug("Realtime client connected", "user_id", c.userID)

	// The request context ends when ServeHTTP returns, so membership checks
	// use a context detached from it.
	go c.writePump()
	go c.readPump(context.WithoutCancel(r.Context()))
}
