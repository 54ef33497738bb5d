package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may read a pack.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility validates a visibility token coming in from the API
// boundary. Anything outside the two known states is rejected before it
// can reach the transition logic.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityPrivate:
		return Visibility(s), nil
	default:
		return "", fmt.Errorf("%w: invalid visibility %q", ErrInvalidInput, s)
	}
}

// MaxCardsPerPack is the hard ceiling on a pack's card list, enforced on
// every mutation.
const MaxCardsPerPack = 64

// Default card dimensions, used only for presentation.
const (
	DefaultCardWidth  = 200
	DefaultCardHeight = 120
)

// Card is a question/answer/hint unit belonging to exactly one pack.
// The ID is stable across edits so clients can diff card lists; position
// and size carry editor layout state. Cards are serialized as a single
// JSON document inside their pack, so the wire tags double as the
// storage encoding.
type Card struct {
	ID        string  `json:"id"`
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	Hint      string  `json:"hint"`
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// NormalizeCards assigns IDs to cards that arrived without one and fills
// in default dimensions. The input slice is not modified.
func NormalizeCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	for i, c := range cards {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.Width == 0 {
			c.Width = DefaultCardWidth
		}
		if c.Height == 0 {
			c.Height = DefaultCardHeight
		}
		out[i] = c
	}
	return out
}

// Pack is a named collection of up to MaxCardsPerPack flashcards with an
// owner and a visibility flag. SubscriberIDs holds the users who have
// saved the pack; the owner is never a subscriber of their own pack.
//
// The pack snapshot has a single wire shape shared by the REST responses
// and the realtime pack-updated events, so the JSON mapping lives here.
type Pack struct {
	ID            int64      `json:"id"`
	OwnerID       int64      `json:"ownerId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Visibility    Visibility `json:"visibility"`
	Cards         []Card     `json:"cards"`
	SubscriberIDs []int64    `json:"subscriberIds"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// SavedPack is a pack enriched with its owner's email, as returned by the
// saved-packs listing.
type SavedPack struct {
	Pack
	OwnerEmail string `json:"ownerEmail"`
}

// Event types broadcast to a pack's channel after a successful mutation.
const (
	PackEventMetaUpdated       = "meta-updated"
	PackEventCardsUpdated      = "cards-updated"
	PackEventVisibilityChanged = "visibility-changed"
	PackEventDeleted           = "deleted"
)

// PackRepository defines persistence operations for packs and the two
// sides of the save/subscribe relation. Each mutation is a single
// statement against the store; multi-step cascades are sequenced by the
// service layer, not wrapped in a transaction here. The Add/Remove
// reference operations are set semantics: adding an existing reference
// or removing a missing one succeeds without effect.
type PackRepository interface {
	Create(ctx context.Context, pack *Pack) error
	GetByID(ctx context.Context, id int64) (*Pack, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Pack, error)
	ListPublicByOwner(ctx context.Context, ownerID int64) ([]Pack, error)
	ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error)
	ListSavedByUser(ctx context.Context, userID int64) ([]SavedPack, error)
	ListSavedIDs(ctx context.Context, userID int64) ([]int64, error)
	// Update persists title, description, visibility, and the card list.
	Update(ctx context.Context, pack *Pack) error
	Delete(ctx context.Context, id int64) error

	AddSubscriber(ctx context.Context, packID, userID int64) error
	RemoveSubscriber(ctx context.Context, packID, userID int64) error
	// ClearSubscribers empties the pack's subscriber set.
	ClearSubscribers(ctx context.Context, packID int64) error

	AddSavedRef(ctx context.Context, userID, packID int64) error
	RemoveSavedRef(ctx context.Context, userID, packID int64) error
	// ClearSavedRefs removes the pack from every user's saved set in one
	// bulk statement.
	ClearSavedRefs(ctx context.Context, packID int64) error
}
