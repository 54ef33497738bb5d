package handler

import (
	"net/http"

	"github.com/cmertens/flashpack/internal/domain"
	"github.com/cmertens/flashpack/internal/service"
)

// UserHandler handles profile, friend, and user-search HTTP requests.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// HandleMe returns the caller's profile.
// GET /api/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	profile, err := h.users.Profile(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

// HandleListFriends returns the caller's friends with emails.
// GET /api/users/me/friends
func (h *UserHandler) HandleListFriends(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	friends, err := h.users.ListFriends(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "list friends", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(friends))
}

// HandleAddFriend adds a symmetric friendship by email.
// POST /api/users/me/friends
func (h *UserHandler) HandleAddFriend(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		FriendEmail string `json:"friendEmail"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	friend, err := h.users.AddFriend(r.Context(), user.ID, req.FriendEmail)
	if err != nil {
		writeDomainError(w, "add friend", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Friend added",
		"friend":  toUserDTO(friend),
	})
}

// HandleRemoveFriend removes both directions of a friendship.
// DELETE /api/users/me/friends/{friendID}
func (h *UserHandler) HandleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	friendID, ok := pathID(w, r, "friendID")
	if !ok {
		return
	}

	if err := h.users.RemoveFriend(r.Context(), user.ID, friendID); err != nil {
		writeDomainError(w, "remove friend", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Friend removed"})
}

// HandleSearch finds users by email substring, excluding the caller.
// GET /api/users/search?q=...
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	users, err := h.users.Search(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, "search users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// HandlePublicPacks returns a user's PUBLIC packs for profile views.
// GET /api/users/{userID}/public-packs
func (h *UserHandler) HandlePublicPacks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	owner, packs, err := h.users.PublicPacks(r.Context(), ownerID)
	if err != nil {
		writeDomainError(w, "get public packs", err)
		return
	}
	if packs == nil {
		packs = []domain.Pack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner": toUserDTO(owner),
		"packs": packs,
	})
}
