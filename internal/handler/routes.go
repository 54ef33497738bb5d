package handler

import (
	"net/http"

	"github.com/cmertens/flashpack/internal/realtime"
	"github.com/cmertens/flashpack/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(
	mux *http.ServeMux,
	auth *service.AuthService,
	packs *service.PackService,
	users *service.UserService,
	hub *realtime.Hub,
	db Pinger,
	cookieSecure bool,
	allowedOrigin string,
) {
	// 10 credential attempts per minute per IP, burst of 10.
	loginLimiter := service.NewAttemptLimiter(10, 10)

	authHandler := NewAuthHandler(auth, loginLimiter, cookieSecure)
	packHandler := NewPackHandler(packs)
	userHandler := NewUserHandler(users)
	wsHandler := NewWSHandler(hub, allowedOrigin)

	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(auth, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(db))

	mux.HandleFunc("POST /api/auth/register", authHandler.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", authHandler.HandleLogin)
	mux.HandleFunc("POST /api/auth/logout", authHandler.HandleLogout)

	mux.Handle("GET /api/packs/mine", protected(packHandler.HandleListMine))
	mux.Handle("GET /api/packs/saved", protected(packHandler.HandleListSaved))
	mux.Handle("POST /api/packs", protected(packHandler.HandleCreate))
	mux.Handle("GET /api/packs/{packID}", protected(packHandler.HandleGet))
	mux.Handle("PATCH /api/packs/{packID}", protected(packHandler.HandleUpdateMeta))
	mux.Handle("DELETE /api/packs/{packID}", protected(packHandler.HandleDelete))
	mux.Handle("PATCH /api/packs/{packID}/cards", protected(packHandler.HandleReplaceCards))
	mux.Handle("PATCH /api/packs/{packID}/visibility", protected(packHandler.HandleChangeVisibility))
	mux.Handle("POST /api/packs/{packID}/save", protected(packHandler.HandleSave))
	mux.Handle("DELETE /api/packs/{packID}/save", protected(packHandler.HandleUnsave))

	mux.Handle("GET /api/users/me", protected(userHandler.HandleMe))
	mux.Handle("GET /api/users/me/friends", protected(userHandler.HandleListFriends))
	mux.Handle("POST /api/users/me/friends", protected(userHandler.HandleAddFriend))
	mux.Handle("DELETE /api/users/me/friends/{friendID}", protected(userHandler.HandleRemoveFriend))
	mux.Handle("GET /api/users/search", protected(userHandler.HandleSearch))
	mux.Handle("GET /api/users/{userID}/public-packs", protected(userHandler.HandlePublicPacks))

	mux.Handle("GET /api/ws", protected(wsHandler.HandleConnect))
}
