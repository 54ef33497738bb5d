package handler

import (
	"time"

	"github.com/cmertens/flashpack/internal/domain"
)

// Pack snapshots marshal straight from the domain record (the REST and
// realtime layers share one wire shape); only user-shaped responses need
// mapping here.

// UserDTO is the JSON representation of a user visible to other users.
type UserDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{ID: u.ID, Email: u.Email}
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}

// ProfileDTO is the JSON representation of the caller's own profile.
type ProfileDTO struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	OwnedPackIDs []int64 `json:"ownedPackIds"`
	SavedPackIDs []int64 `json:"savedPackIds"`
	FriendIDs    []int64 `json:"friendIds"`
	CreatedAt    string  `json:"createdAt"`
}

func toProfileDTO(p *domain.Profile) ProfileDTO {
	return ProfileDTO{
		ID:           p.ID,
		Email:        p.Email,
		OwnedPackIDs: emptyIfNil(p.OwnedPackIDs),
		SavedPackIDs: emptyIfNil(p.SavedPackIDs),
		FriendIDs:    emptyIfNil(p.FriendIDs),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

func emptyIfNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
