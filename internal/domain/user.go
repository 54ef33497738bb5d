package domain

import (
	"context"
	"time"
)

// User represents a registered user of the application.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is a user together with the pack and friend references the
// dashboard needs in one fetch.
type Profile struct {
	User
	OwnedPackIDs []int64
	SavedPackIDs []int64
	FriendIDs    []int64
}

// UserRepository defines persistence operations for users and the
// symmetric friend relation. AddFriend and RemoveFriend maintain both
// directions of the edge; RemoveFriend is idempotent.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// SearchByEmail matches the email substring case-insensitively,
	// excluding the given user, returning at most limit results.
	SearchByEmail(ctx context.Context, query string, excludeUserID int64, limit int) ([]User, error)
	ListFriends(ctx context.Context, userID int64) ([]User, error)
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
	AddFriend(ctx context.Context, userID, friendID int64) error
	RemoveFriend(ctx context.Context, userID, friendID int64) error
}
