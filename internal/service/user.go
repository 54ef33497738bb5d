package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmertens/flashpack/internal/domain"
)

// Maximum number of results returned by a user search.
const searchLimit = 10

// UserService handles profile, friend, and user-search operations.
type UserService struct {
	users domain.UserRepository
	packs domain.PackRepository
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, packs domain.PackRepository) *UserService {
	return &UserService{users: users, packs: packs}
}

// Profile returns the user's record together with their owned pack,
// saved pack, and friend id sets.
func (s *UserService) Profile(ctx context.Context, userID int64) (*domain.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	owned, err := s.packs.ListIDsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned pack ids: %w", err)
	}
	saved, err := s.packs.ListSavedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved pack ids: %w", err)
	}
	friends, err := s.users.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}

	return &domain.Profile{
		User:         *user,
		OwnedPackIDs: owned,
		SavedPackIDs: saved,
		FriendIDs:    friends,
	}, nil
}

// ListFriends returns the user's friends.
func (s *UserService) ListFriends(ctx context.Context, userID int64) ([]domain.User, error) {
	return s.users.ListFriends(ctx, userID)
}

// AddFriend adds a friendship by the friend's email. The relation is
// symmetric: both users gain the edge. Befriending yourself is invalid.
func (s *UserService) AddFriend(ctx context.Context, userID int64, friendEmail string) (*domain.User, error) {
	friendEmail = strings.TrimSpace(friendEmail)
	if friendEmail == "" {
		return nil, fmt.Errorf("%w: friend email is required", domain.ErrInvalidInput)
	}

	friend, err := s.users.GetByEmail(ctx, friendEmail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no user with that email", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get friend by email: %w", err)
	}

	if friend.ID == userID {
		return nil, fmt.Errorf("%w: cannot add yourself as a friend", domain.ErrInvalidInput)
	}

	if err := s.users.AddFriend(ctx, userID, friend.ID); err != nil {
		return nil, fmt.Errorf("add friend: %w", err)
	}
	return friend, nil
}

// RemoveFriend removes both directions of a friendship. Removing a
// friendship that does not exist is a no-op.
func (s *UserService) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	return s.users.RemoveFriend(ctx, userID, friendID)
}

// Search finds users by case-insensitive email substring, excluding the
// caller, capped at searchLimit results. A blank query returns nothing.
func (s *UserService) Search(ctx context.Context, userID int64, query string) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.User{}, nil
	}
	return s.users.SearchByEmail(ctx, query, userID, searchLimit)
}

// PublicPacks returns a user's PUBLIC packs along with the user record,
// for friend-profile views.
func (s *UserService) PublicPacks(ctx context.Context, ownerID int64) (*domain.User, []domain.Pack, error) {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	packs, err := s.packs.ListPublicByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("list public packs: %w", err)
	}
	return owner, packs, nil
}
