package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dodocesoir/internal/model"
)

// AvailabilityRepo reads and overwrites the single availability row kept
// per listing.
type AvailabilityRepo struct {
	db *sqlx.DB
}

// NewAvailabilityRepo creates a new AvailabilityRepo.
func NewAvailabilityRepo(db *sqlx.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

// Get returns the availability record for listingID or ErrNotFound when
// the provider never submitted one.
func (r *AvailabilityRepo) Get(ctx context.Context, listingID string) (model.AvailabilityRecord, error) {
	q := r.db.Rebind(`SELECT listing_id, is_available, capacity, updated_at
		FROM availability WHERE listing_id = ?`)
	var rec model.AvailabilityRecord
	if err := r.db.GetContext(ctx, &rec, q, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AvailabilityRecord{}, ErrNotFound
		}
		return model.AvailabilityRecord{}, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Upsert writes rec as the complete availability row for its listing.
// Every column is replaced; nothing from a previous row survives.
func (r *AvailabilityRepo) Upsert(ctx context.Context, rec model.AvailabilityRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	q := r.db.Rebind(upsertAvailabilitySQL(r.db.DriverName()))
	_, err := r.db.ExecContext(ctx, q, rec.ListingID, rec.IsAvailable, rec.Capacity, rec.UpdatedAt.UTC())
	return err
}

// upsertAvailabilitySQL picks the insert-or-replace form understood by the
// driver.  MySQL has its own syntax; Postgres and SQLite share ON CONFLICT.
func upsertAvailabilitySQL(driver string) string {
	const insert = `INSERT INTO availability (listing_id, is_available, capacity, updated_at)
		VALUES (?, ?, ?, ?)`
	if driver == "mysql" {
		return insert + `
		ON DUPLICATE KEY UPDATE
			is_available = VALUES(is_available),
			capacity = VALUES(capacity),
			updated_at = VALUES(updated_at)`
	}
	return insert + `
		ON CONFLICT (listing_id) DO UPDATE SET
			is_available = excluded.is_available,
			capacity = excluded.capacity,
			updated_at = excluded.updated_at`
}
