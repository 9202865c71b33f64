package service

import (
	"context"
	"errors"

	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/repository"
)

// LinkResolver finds the listing a principal manages.  The first
// successful match by email is persisted; later calls read the stored
// link and never re-match.
type LinkResolver struct {
	links    LinkStore
	listings ListingStore
}

func NewLinkResolver(links LinkStore, listings ListingStore) *LinkResolver {
	return &LinkResolver{links: links, listings: listings}
}

// Resolve returns the listing id linked to p.  linked is false when no
// listing matches p's email, when the match is ambiguous, or when the
// matching listing is already managed by another principal.  A non-nil
// error always wraps ErrStoreUnavailable and means no link was written.
func (r *LinkResolver) Resolve(ctx context.Context, p model.Principal) (listingID string, linked bool, err error) {
	l, err := r.links.GetByPrincipal(ctx, p.ID)
	if err == nil {
		return l.ListingID, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", false, storeErr(err)
	}

	ids, err := r.listings.FindIDsByProviderEmail(ctx, p.Email)
	if err != nil {
		return "", false, storeErr(err)
	}
	if len(ids) != 1 {
		return "", false, nil
	}

	owner, err := r.links.GetByListing(ctx, ids[0])
	switch {
	case err == nil:
		if owner.PrincipalID == p.ID {
			return owner.ListingID, true, nil
		}
		return "", false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return "", false, storeErr(err)
	}

	created, err := r.links.Create(ctx, p.ID, ids[0])
	if errors.Is(err, repository.ErrConflict) {
		// lost a race; whatever is stored now is the answer
		return r.lookup(ctx, p.ID)
	}
	if err != nil {
		return "", false, storeErr(err)
	}
	return created.ListingID, true, nil
}

func (r *LinkResolver) lookup(ctx context.Context, principalID string) (string, bool, error) {
	l, err := r.links.GetByPrincipal(ctx, principalID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr(err)
	}
	return l.ListingID, true, nil
}
