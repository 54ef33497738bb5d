package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cmertens/flashpack/internal/domain"
)

// PackNotifier receives a change notification after every successful
// mutating pack operation. Implementations must not block: delivery is
// best-effort, at-most-once, and a slow consumer is the notifier's
// problem, never the mutation path's.
type PackNotifier interface {
	PackUpdated(eventType string, pack *domain.Pack)
}

// PackService handles pack CRUD, the visibility state machine, and the
// save/subscribe relation.
type PackService struct {
	packs    domain.PackRepository
	notifier PackNotifier
}

// NewPackService creates a new PackService. notifier may be nil, in
// which case change notifications are skipped.
func NewPackService(packs domain.PackRepository, notifier PackNotifier) *PackService {
	return &PackService{packs: packs, notifier: notifier}
}

// ListOwned returns the caller's packs in insertion order.
func (s *PackService) ListOwned(ctx context.Context, userID int64) ([]domain.Pack, error) {
	return s.packs.ListByOwner(ctx, userID)
}

// ListSaved returns the packs the caller has saved, enriched with each
// owner's email.
func (s *PackService) ListSaved(ctx context.Context, userID int64) ([]domain.SavedPack, error) {
	return s.packs.ListSavedByUser(ctx, userID)
}

// ListPublicByOwner returns a user's PUBLIC packs only.
func (s *PackService) ListPublicByOwner(ctx context.Context, ownerID int64) ([]domain.Pack, error) {
	return s.packs.ListPublicByOwner(ctx, ownerID)
}

// Create makes a new empty pack owned by the caller. An empty visibility
// defaults to PRIVATE.
func (s *PackService) Create(ctx context.Context, ownerID int64, title, description, visibility string) (*domain.Pack, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}

	vis := domain.VisibilityPrivate
	if visibility != "" {
		parsed, err := domain.ParseVisibility(visibility)
		if err != nil {
			return nil, err
		}
		vis = parsed
	}

	pack := &domain.Pack{
		OwnerID:       ownerID,
		Title:         title,
		Description:   description,
		Visibility:    vis,
		Cards:         []domain.Card{},
		SubscriberIDs: []int64{},
	}
	if err := s.packs.Create(ctx, pack); err != nil {
		return nil, fmt.Errorf("create pack: %w", err)
	}
	return pack, nil
}

// Get returns a pack if the viewer may read it. A private pack read by a
// non-owner yields ErrForbidden, not ErrNotFound: pack existence is not
// treated as a secret.
func (s *PackService) Get(ctx context.Context, viewerID, packID int64) (*domain.Pack, error) {
	pack, err := s.packs.GetByID(ctx, packID)
	if err != nil {
		return nil, err
	}
	if !canRead(pack, viewerID) {
		return nil, domain.ErrForbidden
	}
	return pack, nil
}

// UpdateMeta updates a pack's title and/or description. A title that is
// blank after trimming is ignored rather than rejected; a nil field is
// left untouched. Broadcasts meta-updated on success.
func (s *PackService) UpdateMeta(ctx context.Context, userID, packID int64, title, description *string) (*domain.Pack, error) {
	pack, err := s.ownedPack(ctx, userID, packID)
	if err != nil {
		return nil, err
	}

	if title != nil {
		if t := strings.TrimSpace(*title); t != "" {
			pack.Title = t
		}
	}
	if description != nil {
		pack.Description = *description
	}

	if err := s.packs.Update(ctx, pack); err != nil {
		return nil, fmt.Errorf("update pack meta: %w", err)
	}

	s.notify(ctx, packID, domain.PackEventMetaUpdated)
	return pack, nil
}

// ReplaceCards replaces the pack's card list wholesale. A list longer
// than MaxCardsPerPack is rejected before any write, leaving the stored
// pack unchanged. Broadcasts cards-updated on success.
func (s *PackService) ReplaceCards(ctx context.Context, userID, packID int64, cards []domain.Card) (*domain.Pack, error) {
	pack, err := s.ownedPack(ctx, userID, packID)
	if err != nil {
		return nil, err
	}

	if len(cards) > domain.MaxCardsPerPack {
		return nil, fmt.Errorf("%w: a pack cannot contain more than %d cards", domain.ErrInvalidInput, domain.MaxCardsPerPack)
	}

	pack.Cards = domain.NormalizeCards(cards)
	if err := s.packs.Update(ctx, pack); err != nil {
		return nil, fmt.Errorf("update pack cards: %w", err)
	}

	s.notify(ctx, packID, domain.PackEventCardsUpdated)
	return pack, nil
}

// ChangeVisibility drives the pack visibility state machine.
//
//	PRIVATE -> PUBLIC   flag flip only
//	PUBLIC  -> PRIVATE  cascading detachment, then flag flip
//	same    -> same     no-op, pack returned unchanged
//
// The PUBLIC->PRIVATE cascade removes the pack from every subscriber's
// saved set and empties the subscriber set, so that no user keeps a
// saved reference to a pack they can no longer read. The cascade runs
// as a sequence of idempotent steps: on failure the error is surfaced,
// the remaining steps are skipped, and the persisted visibility flag is
// left untouched. Re-running the transition after a partial failure
// converges.
func (s *PackService) ChangeVisibility(ctx context.Context, userID, packID int64, target string) (*domain.Pack, error) {
	vis, err := domain.ParseVisibility(target)
	if err != nil {
		return nil, err
	}

	pack, err := s.ownedPack(ctx, userID, packID)
	if err != nil {
		return nil, err
	}

	if pack.Visibility == vis {
		return pack, nil
	}

	if pack.Visibility == domain.VisibilityPublic && vis == domain.VisibilityPrivate {
		// The owner is never a subscriber of their own pack, so the
		// whole subscriber set detaches.
		if err := s.packs.ClearSavedRefs(ctx, packID); err != nil {
			return nil, fmt.Errorf("detach saved references: %w", err)
		}
		if err := s.packs.ClearSubscribers(ctx, packID); err != nil {
			return nil, fmt.Errorf("clear subscribers: %w", err)
		}
		pack.SubscriberIDs = []int64{}
	}

	pack.Visibility = vis
	if err := s.packs.Update(ctx, pack); err != nil {
		return nil, fmt.Errorf("save pack visibility: %w", err)
	}

	s.notify(ctx, packID, domain.PackEventVisibilityChanged)
	return pack, nil
}

// Save subscribes the caller to a public pack, recording the reference
// on both sides of the relation. Saving your own pack is rejected;
// saving a pack you already saved is a no-op.
func (s *PackService) Save(ctx context.Context, userID, packID int64) error {
	pack, err := s.packs.GetByID(ctx, packID)
	if err != nil {
		return err
	}
	if pack.OwnerID == userID {
		return fmt.Errorf("%w: cannot save your own pack", domain.ErrInvalidInput)
	}
	if pack.Visibility != domain.VisibilityPublic {
		return fmt.Errorf("%w: cannot save a non-public pack", domain.ErrForbidden)
	}

	if err := s.packs.AddSavedRef(ctx, userID, packID); err != nil {
		return fmt.Errorf("add saved reference: %w", err)
	}
	if err := s.packs.AddSubscriber(ctx, packID, userID); err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

// Unsave removes both sides of the save relation unconditionally.
// Unsaving a pack that was never saved, or no longer exists, succeeds.
func (s *PackService) Unsave(ctx context.Context, userID, packID int64) error {
	if err := s.packs.RemoveSavedRef(ctx, userID, packID); err != nil {
		return fmt.Errorf("remove saved reference: %w", err)
	}
	if err := s.packs.RemoveSubscriber(ctx, packID, userID); err != nil {
		return fmt.Errorf("remove subscriber: %w", err)
	}
	return nil
}

// Delete destroys a pack: every saved reference to it is dropped, the
// subscriber set is emptied, and the record is removed. Ownership of the
// pack list is derived from the pack records themselves, so the owner's
// set shrinks with the delete. Broadcasts deleted with the last snapshot.
func (s *PackService) Delete(ctx context.Context, userID, packID int64) error {
	pack, err := s.ownedPack(ctx, userID, packID)
	if err != nil {
		return err
	}

	if err := s.packs.ClearSavedRefs(ctx, packID); err != nil {
		return fmt.Errorf("clear saved references: %w", err)
	}
	if err := s.packs.ClearSubscribers(ctx, packID); err != nil {
		return fmt.Errorf("clear subscribers: %w", err)
	}
	if err := s.packs.Delete(ctx, packID); err != nil {
		return fmt.Errorf("delete pack: %w", err)
	}

	if s.notifier != nil {
		pack.SubscriberIDs = []int64{}
		s.notifier.PackUpdated(domain.PackEventDeleted, pack)
	}
	return nil
}

// ownedPack loads a pack and verifies the caller owns it.
func (s *PackService) ownedPack(ctx context.Context, userID, packID int64) (*domain.Pack, error) {
	pack, err := s.packs.GetByID(ctx, packID)
	if err != nil {
		return nil, err
	}
	if pack.OwnerID != userID {
		return nil, domain.ErrForbidden
	}
	return pack, nil
}

// notify re-reads the authoritative pack state and hands it to the
// notifier. Broadcast failures never fail the mutation that triggered
// them.
func (s *PackService) notify(ctx context.Context, packID int64, eventType string) {
	if s.notifier == nil {
		return
	}
	pack, err := s.packs.GetByID(ctx, packID)
	if err != nil {
		slog.Error("load pack for notification", "packId", packID, "event", eventType, "error", err)
		return
	}
	s.notifier.PackUpdated(eventType, pack)
}

func canRead(p *domain.Pack, viewerID int64) bool {
	return p.OwnerID == viewerID || p.Visibility == domain.VisibilityPublic
}
