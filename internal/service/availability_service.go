package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/dodocesoir/internal/availability"
	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/repository"
)

// Dashboard is what a signed-in provider sees.  When Linked is false all
// other fields are empty.
type Dashboard struct {
	Linked             bool                      `json:"linked"`
	Listing            *ListingItem              `json:"listing,omitempty"`
	IsAvailable        *bool                     `json:"is_available,omitempty"`
	Capacity           *int                      `json:"capacity,omitempty"`
	UpdatedAt          *time.Time                `json:"updated_at,omitempty"`
	AvailabilityStatus *model.AvailabilityStatus `json:"availability_status,omitempty"`
}

// AvailabilityService lets linked providers read and overwrite the
// availability of their listing.
type AvailabilityService struct {
	links    LinkStore
	records  AvailabilityStore
	listings ListingStore
	resolver *LinkResolver
	clock    availability.Clock
	window   time.Duration
}

func NewAvailabilityService(links LinkStore, records AvailabilityStore, listings ListingStore, resolver *LinkResolver, clock availability.Clock, window time.Duration) *AvailabilityService {
	if clock == nil {
		clock = availability.SystemClock{}
	}
	return &AvailabilityService{
		links:    links,
		records:  records,
		listings: listings,
		resolver: resolver,
		clock:    clock,
		window:   window,
	}
}

// Submit overwrites the availability record of listingID.  principalID
// must be linked to listingID, otherwise ErrUnauthorized is returned and
// nothing is written.  A false flag always stores a nil capacity; a
// capacity of zero is treated as not given.
func (s *AvailabilityService) Submit(ctx context.Context, principalID, listingID string, isAvailable bool, capacity *int) (model.AvailabilityRecord, error) {
	if principalID == "" || listingID == "" {
		return model.AvailabilityRecord{}, ErrUnauthorized
	}
	link, err := s.links.GetByPrincipal(ctx, principalID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.AvailabilityRecord{}, ErrUnauthorized
	}
	if err != nil {
		return model.AvailabilityRecord{}, storeErr(err)
	}
	if link.ListingID != listingID {
		return model.AvailabilityRecord{}, ErrUnauthorized
	}

	rec := model.AvailabilityRecord{
		ListingID:   listingID,
		IsAvailable: &isAvailable,
		UpdatedAt:   s.clock.Now().UTC(),
	}
	if isAvailable && capacity != nil && *capacity != 0 {
		if *capacity < 0 {
			return model.AvailabilityRecord{}, ErrInvalidCapacity
		}
		c := *capacity
		rec.Capacity = &c
	}

	if err := s.records.Upsert(ctx, rec); err != nil {
		return model.AvailabilityRecord{}, storeErr(err)
	}
	return rec, nil
}

// Status classifies rec at the service clock.
func (s *AvailabilityService) Status(rec *model.AvailabilityRecord) model.AvailabilityStatus {
	return availability.Derive(rec, s.clock.Now(), s.window)
}

// Dashboard resolves p's link and returns the listing with its current
// record.  An unlinked principal gets Dashboard{Linked: false} and no
// error.
func (s *AvailabilityService) Dashboard(ctx context.Context, p model.Principal) (Dashboard, error) {
	listingID, linked, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return Dashboard{}, err
	}
	if !linked {
		return Dashboard{Linked: false}, nil
	}

	v, err := s.listings.GetView(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return Dashboard{Linked: false}, nil
	}
	if err != nil {
		return Dashboard{}, storeErr(err)
	}
	now := s.clock.Now()
	item := newListingItem(v, now, s.window, "")
	status := item.AvailabilityStatus
	return Dashboard{
		Linked:             true,
		Listing:            &item,
		IsAvailable:        v.IsAvailable,
		Capacity:           v.Capacity,
		UpdatedAt:          v.AvailabilityUpdatedAt,
		AvailabilityStatus: &status,
	}, nil
}
