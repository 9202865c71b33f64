// Package availability classifies availability records into the four
// display states shared by every consumer of listing data.
package availability

import (
	"time"

	"github.com/iliyamo/dodocesoir/internal/model"
)

// DefaultFreshnessWindow is used when no window is configured.
const DefaultFreshnessWindow = 24 * time.Hour

// Derive maps an availability record, the current time and the freshness
// window to a display status.  It is pure and total: a nil record, a nil
// flag or a zero timestamp all yield StatusUnknown.
//
// Freshness dominates the flag.  A record whose age is strictly greater
// than window is expired whatever its flag says; an age exactly equal to
// window is still fresh.  Records stamped in the future count as fresh.  A
// window <= 0 disables expiry.
func Derive(rec *model.AvailabilityRecord, now time.Time, window time.Duration) model.AvailabilityStatus {
	if rec == nil || rec.IsAvailable == nil || rec.UpdatedAt.IsZero() {
		return model.StatusUnknown
	}
	if window > 0 && now.Sub(rec.UpdatedAt) > window {
		return model.StatusExpired
	}
	if *rec.IsAvailable {
		return model.StatusAvailable
	}
	return model.StatusFull
}

// PublicCapacity returns the capacity to show next to a status.  Only
// available listings report a count.
func PublicCapacity(rec *model.AvailabilityRecord, status model.AvailabilityStatus) *int {
	if rec == nil || status != model.StatusAvailable || rec.Capacity == nil {
		return nil
	}
	c := *rec.Capacity
	return &c
}
