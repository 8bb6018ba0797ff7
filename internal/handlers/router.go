package handlers

import "net/http"

type Router struct {
	Auth         Authenticator
	AuthHandlers *AuthHandlers
	UserHandlers *UserHandlers
	MsgHandlers  *MessageHandlers
	WSHandlers   *WebSocketHandlers
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth routes
	mux.HandleFunc("POST /auth/register", rt.AuthHandlers.Register)
	mux.HandleFunc("POST /auth/login", rt.AuthHandlers.Login)

	// User routes
	mux.Handle("GET /users/me", rt.protect(rt.UserHandlers.Me))
	mux.Handle("GET /users", rt.protect(rt.UserHandlers.List))

	// Message routes
	mux.Handle("POST /messages/{peerId}", rt.protect(rt.MsgHandlers.Send))
	mux.Handle("GET /messages/{peerId}", rt.protect(rt.MsgHandlers.History))

	// WebSocket route
	mux.HandleFunc("GET /ws", rt.WSHandlers.HandleWebSocket)

	return mux
}

func (rt *Router) protect(h http.HandlerFunc) http.Handler {
	return RequireAuth(rt.Auth, h)
}
