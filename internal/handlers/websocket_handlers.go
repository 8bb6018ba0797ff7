package handlers

import (
	"context"
	"net/http"

	"direct-chat/internal/realtime"
	"direct-chat/internal/services"
	ws "direct-chat/internal/websocket"
	"direct-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	auth       Authenticator
	hub        *realtime.Hub
	messages   *services.MessageService
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewWebSocketHandlers(auth Authenticator, hub *realtime.Hub, messages *services.MessageService, sendBuffer int) *WebSocketHandlers {
	return &WebSocketHandlers{
		auth:       auth,
		hub:        hub,
		messages:   messages,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket authenticates before upgrading, so a rejected connection
// never reaches the hub.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := tokenFromRequest(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := h.auth.Authenticate(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(conn, user, h.hub, h.messages, ws.ClientOptions{
		SendBuffer:   h.sendBuffer,
		SelfPresence: r.URL.Query().Get("self") == "true",
	})

	go client.WritePump()

	ctx := context.WithoutCancel(r.Context())
	if err := h.hub.Register(ctx, client); err != nil {
		logger.Warn("Register error for user %s: %v", user.ID, err)
		client.Close()
		return
	}

	client.ReadPump(ctx)
}
