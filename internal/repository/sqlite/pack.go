package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmertens/flashpack/internal/domain"
)

// PackRepository implements domain.PackRepository using SQLite. The card
// list is stored as a single JSON document column and replaced wholesale
// on update; the subscriber and saved-reference sets live in their own
// tables and are mutated one statement at a time.
type PackRepository struct {
	db *sql.DB
}

// NewPackRepository creates a new SQLite-backed PackRepository.
func NewPackRepository(db *DB) *PackRepository {
	return &PackRepository{db: db.SqlDB}
}

func (r *PackRepository) Create(ctx context.Context, pack *domain.Pack) error {
	cards, err := marshalCards(pack.Cards)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO packs (owner_id, title, description, visibility, cards, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pack.OwnerID, pack.Title, pack.Description, pack.Visibility, cards, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert pack: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	pack.ID = id
	pack.CreatedAt = now
	pack.UpdatedAt = now
	return nil
}

func (r *PackRepository) GetByID(ctx context.Context, id int64) (*domain.Pack, error) {
	pack := &domain.Pack{}
	var cards []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, description, visibility, cards, created_at, updated_at
		 FROM packs WHERE id = ?`, id,
	).Scan(&pack.ID, &pack.OwnerID, &pack.Title, &pack.Description, &pack.Visibility,
		&cards, &pack.CreatedAt, &pack.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query pack by id: %w", err)
	}

	if err := json.Unmarshal(cards, &pack.Cards); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}

	subscribers, err := queryIDs(ctx, r.db,
		`SELECT user_id FROM pack_subscribers WHERE pack_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	if subscribers == nil {
		subscribers = []int64{}
	}
	pack.SubscriberIDs = subscribers

	return pack, nil
}

func (r *PackRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Pack, error) {
	// Insertion order: rowids are monotonic.
	return r.listPacks(ctx,
		`SELECT id, owner_id, title, description, visibility, cards, created_at, updated_at
		 FROM packs WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *PackRepository) ListPublicByOwner(ctx context.Context, ownerID int64) ([]domain.Pack, error) {
	return r.listPacks(ctx,
		`SELECT id, owner_id, title, description, visibility, cards, created_at, updated_at
		 FROM packs WHERE owner_id = ? AND visibility = ? ORDER BY id`,
		ownerID, domain.VisibilityPublic)
}

func (r *PackRepository) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	return queryIDs(ctx, r.db,
		`SELECT id FROM packs WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *PackRepository) ListSavedByUser(ctx context.Context, userID int64) ([]domain.SavedPack, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.owner_id, p.title, p.description, p.visibility, p.cards,
		        p.created_at, p.updated_at, u.email
		 FROM saved_packs sp
		 JOIN packs p ON p.id = sp.pack_id
		 JOIN users u ON u.id = p.owner_id
		 WHERE sp.user_id = ?
		 ORDER BY p.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list saved packs: %w", err)
	}
	defer rows.Close()

	var saved []domain.SavedPack
	for rows.Next() {
		var sp domain.SavedPack
		var cards []byte
		if err := rows.Scan(&sp.ID, &sp.OwnerID, &sp.Title, &sp.Description, &sp.Visibility,
			&cards, &sp.CreatedAt, &sp.UpdatedAt, &sp.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan saved pack: %w", err)
		}
		if err := json.Unmarshal(cards, &sp.Cards); err != nil {
			return nil, fmt.Errorf("decode cards: %w", err)
		}
		saved = append(saved, sp)
	}
	return saved, rows.Err()
}

func (r *PackRepository) ListSavedIDs(ctx context.Context, userID int64) ([]int64, error) {
	return queryIDs(ctx, r.db,
		`SELECT pack_id FROM saved_packs WHERE user_id = ? ORDER BY pack_id`, userID)
}

func (r *PackRepository) Update(ctx context.Context, pack *domain.Pack) error {
	cards, err := marshalCards(pack.Cards)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE packs SET title = ?, description = ?, visibility = ?, cards = ?, updated_at = ?
		 WHERE id = ?`,
		pack.Title, pack.Description, pack.Visibility, cards, now, pack.ID,
	)
	if err != nil {
		return fmt.Errorf("update pack: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	pack.UpdatedAt = now
	return nil
}

func (r *PackRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM packs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pack: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PackRepository) AddSubscriber(ctx context.Context, packID, userID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pack_subscribers (pack_id, user_id) VALUES (?, ?)`,
		packID, userID,
	); err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

func (r *PackRepository) RemoveSubscriber(ctx context.Context, packID, userID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM pack_subscribers WHERE pack_id = ? AND user_id = ?`,
		packID, userID,
	); err != nil {
		return fmt.Errorf("remove subscriber: %w", err)
	}
	return nil
}

func (r *PackRepository) ClearSubscribers(ctx context.Context, packID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM pack_subscribers WHERE pack_id = ?`, packID,
	); err != nil {
		return fmt.Errorf("clear subscribers: %w", err)
	}
	return nil
}

func (r *PackRepository) AddSavedRef(ctx context.Context, userID, packID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO saved_packs (user_id, pack_id) VALUES (?, ?)`,
		userID, packID,
	); err != nil {
		return fmt.Errorf("add saved ref: %w", err)
	}
	return nil
}

func (r *PackRepository) RemoveSavedRef(ctx context.Context, userID, packID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_packs WHERE user_id = ? AND pack_id = ?`,
		userID, packID,
	); err != nil {
		return fmt.Errorf("remove saved ref: %w", err)
	}
	return nil
}

func (r *PackRepository) ClearSavedRefs(ctx context.Context, packID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_packs WHERE pack_id = ?`, packID,
	); err != nil {
		return fmt.Errorf("clear saved refs: %w", err)
	}
	return nil
}

func (r *PackRepository) listPacks(ctx context.Context, query string, args ...any) ([]domain.Pack, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var packs []domain.Pack
	for rows.Next() {
		var p domain.Pack
		var cards []byte
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Visibility,
			&cards, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pack: %w", err)
		}
		if err := json.Unmarshal(cards, &p.Cards); err != nil {
			return nil, fmt.Errorf("decode cards: %w", err)
		}
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

func marshalCards(cards []domain.Card) ([]byte, error) {
	if cards == nil {
		cards = []domain.Card{}
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return nil, fmt.Errorf("encode cards: %w", err)
	}
	return data, nil
}

func queryIDs(ctx context.Context, db *sql.DB, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
