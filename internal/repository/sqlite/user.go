package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmertens/flashpack/internal/domain"
)

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.SqlDB}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		user.Email, user.PasswordHash, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users WHERE email = ?`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SearchByEmail(ctx context.Context, query string, excludeUserID int64, limit int) ([]domain.User, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users
		 WHERE id != ? AND email LIKE ? ESCAPE '\' COLLATE NOCASE
		 ORDER BY email
		 LIMIT ?`,
		excludeUserID, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (r *UserRepository) ListFriends(ctx context.Context, userID int64) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.password_hash, u.created_at, u.updated_at
		 FROM friends f
		 JOIN users u ON u.id = f.friend_id
		 WHERE f.user_id = ?
		 ORDER BY u.email`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (r *UserRepository) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	return queryIDs(ctx, r.db,
		`SELECT friend_id FROM friends WHERE user_id = ? ORDER BY friend_id`, userID)
}

// AddFriend stores both directions of the friendship. Each insert is a
// set-add: re-adding an existing friend is a no-op.
func (r *UserRepository) AddFriend(ctx context.Context, userID, friendID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO friends (user_id, friend_id) VALUES (?, ?)`,
		userID, friendID,
	); err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO friends (user_id, friend_id) VALUES (?, ?)`,
		friendID, userID,
	); err != nil {
		return fmt.Errorf("add reverse friend: %w", err)
	}
	return nil
}

// RemoveFriend deletes both directions of the friendship. Removing a
// friendship that does not exist is not an error.
func (r *UserRepository) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM friends WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		userID, friendID, friendID, userID,
	); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

func scanUsers(rows *sql.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// escapeLike escapes LIKE wildcards in user-supplied search input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isUniqueConstraintError checks if the error is a SQLite unique
// constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
