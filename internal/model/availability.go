package model

import "time"

// AvailabilityStatus is the display state derived from an availability
// record at read time.  It is never stored.
type AvailabilityStatus string

const (
    StatusAvailable AvailabilityStatus = "available"
    StatusFull      AvailabilityStatus = "full"
    StatusExpired   AvailabilityStatus = "expired"
    StatusUnknown   AvailabilityStatus = "unknown"
)

// AvailabilityRecord mirrors the `availability` table.  There is at most
// one row per listing; every submission overwrites it.
//
// Fields:
//  ListingID   – primary key, references listings.id.
//  IsAvailable – nil when the provider never set the flag.
//  Capacity    – free places; only meaningful when IsAvailable is true.
//  UpdatedAt   – time of the last submission (UTC).
type AvailabilityRecord struct {
    ListingID   string    `db:"listing_id"`
    IsAvailable *bool     `db:"is_available"`
    Capacity    *int      `db:"capacity"`
    UpdatedAt   time.Time `db:"updated_at"`
}
