package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dodocesoir/internal/model"
)

// LinkRepo persists the principal to listing association.  Both columns
// are unique so a principal manages one listing and a listing has one
// manager.
type LinkRepo struct {
	db *sqlx.DB
}

func NewLinkRepo(db *sqlx.DB) *LinkRepo { return &LinkRepo{db: db} }

// GetByPrincipal returns the link owned by principalID or ErrNotFound.
func (r *LinkRepo) GetByPrincipal(ctx context.Context, principalID string) (model.ProviderLink, error) {
	return r.getOne(ctx, `SELECT principal_id, listing_id, created_at
		FROM provider_links WHERE principal_id = ?`, principalID)
}

// GetByListing returns the link pointing at listingID or ErrNotFound.
func (r *LinkRepo) GetByListing(ctx context.Context, listingID string) (model.ProviderLink, error) {
	return r.getOne(ctx, `SELECT principal_id, listing_id, created_at
		FROM provider_links WHERE listing_id = ?`, listingID)
}

func (r *LinkRepo) getOne(ctx context.Context, q string, arg string) (model.ProviderLink, error) {
	var l model.ProviderLink
	if err := r.db.GetContext(ctx, &l, r.db.Rebind(q), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ProviderLink{}, ErrNotFound
		}
		return model.ProviderLink{}, err
	}
	return l, nil
}

// Create inserts a new link.  It returns ErrConflict when either the
// principal or the listing is already linked.
func (r *LinkRepo) Create(ctx context.Context, principalID, listingID string) (model.ProviderLink, error) {
	l := model.ProviderLink{
		PrincipalID: principalID,
		ListingID:   listingID,
		CreatedAt:   time.Now().UTC(),
	}
	q := r.db.Rebind(`INSERT INTO provider_links (principal_id, listing_id, created_at) VALUES (?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, l.PrincipalID, l.ListingID, l.CreatedAt); err != nil {
		if isDuplicate(err) {
			return model.ProviderLink{}, ErrConflict
		}
		return model.ProviderLink{}, err
	}
	return l, nil
}
