// This file defines read access to the externally managed listings table.
// Listings are never written by this service; the only queries are the
// public read view (listings joined with their availability row) and the
// email lookups used by provider sign-in and link resolution.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dodocesoir/internal/model"
)

// listingColumns lists every listings column with the "l" alias used by
// the joined queries below.
const listingColumns = `l.id, l.stage, l.town, l.name, l.type, l.email, l.website, l.phone,
	l.address, l.host, l.open_season, l.shared_beds, l.price_bed, l.private_rooms,
	l.price_room, l.breakfast, l.dinner, l.kitchen, l.wifi, l.bike_storage,
	l.disability_access, l.notes, l.lat, l.lng, l.gps_precision, l.translations,
	l.provider_email, l.is_registered`

const listingViewSelect = `SELECT ` + listingColumns + `,
	a.is_available, a.capacity, a.updated_at AS availability_updated_at
	FROM listings l
	LEFT JOIN availability a ON a.listing_id = l.id`

// ListingRepo encapsulates all database queries related to listings.
type ListingRepo struct {
	db *sqlx.DB // db is the underlying database connection pool
}

// NewListingRepo constructs a ListingRepo with the provided DB handle.
func NewListingRepo(db *sqlx.DB) *ListingRepo {
	return &ListingRepo{db: db}
}

// ListViews returns every listing with its availability columns, ordered
// by route stage then town.  Listings without an availability record carry
// nil availability fields.
func (r *ListingRepo) ListViews(ctx context.Context) ([]model.ListingView, error) {
	q := listingViewSelect + ` ORDER BY l.stage, l.town, l.name`
	var out []model.ListingView
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// GetView fetches one listing with its availability columns.  It returns
// ErrNotFound if no listing has that id.
func (r *ListingRepo) GetView(ctx context.Context, id string) (model.ListingView, error) {
	q := r.db.Rebind(listingViewSelect + ` WHERE l.id = ?`)
	var v model.ListingView
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ListingView{}, ErrNotFound
		}
		return model.ListingView{}, err
	}
	return v, nil
}

// FindIDsByProviderEmail returns the ids of listings whose registered
// provider address matches email.  The provider_email column wins; the
// public contact email is used only when provider_email is NULL.  At most
// two ids are returned, which is enough for callers to detect ambiguity.
func (r *ListingRepo) FindIDsByProviderEmail(ctx context.Context, email string) ([]string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	q := r.db.Rebind(`SELECT id FROM listings
		WHERE LOWER(COALESCE(provider_email, email)) = ?
		ORDER BY stage, id
		LIMIT 2`)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q, email); err != nil {
		return nil, err
	}
	return ids, nil
}

// EmailRegistered reports whether any listing carries email as its contact
// or provider address.  Only such addresses may request a sign-in code.
func (r *ListingRepo) EmailRegistered(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	q := r.db.Rebind(`SELECT COUNT(*) FROM listings
		WHERE LOWER(email) = ? OR LOWER(provider_email) = ?`)
	var n int
	if err := r.db.GetContext(ctx, &n, q, email, email); err != nil {
		return false, err
	}
	return n > 0, nil
}
