package service

import (
	"strings"
	"time"

	"github.com/iliyamo/dodocesoir/internal/availability"
	"github.com/iliyamo/dodocesoir/internal/model"
)

// Locales that may carry per-listing text overrides.
var supportedLocales = map[string]bool{"fr": true, "en": true, "es": true, "de": true, "it": true}

// ListingItem is the public JSON shape of one listing.  The provider
// email is never exposed.
type ListingItem struct {
	ID               string             `json:"id"`
	Stage            int                `json:"stage"`
	Town             string             `json:"town"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	Type             *model.ListingType `json:"type"`
	Email            *string            `json:"email"`
	Website          *string            `json:"website"`
	Phone            *string            `json:"phone"`
	Address          *string            `json:"address"`
	Host             *string            `json:"host"`
	OpenSeason       *string            `json:"open_season"`
	SharedBeds       *string            `json:"shared_beds"`
	PriceBed         *string            `json:"price_bed"`
	PrivateRooms     *string            `json:"private_rooms"`
	PriceRoom        *string            `json:"price_room"`
	Breakfast        *bool              `json:"breakfast"`
	Dinner           *bool              `json:"dinner"`
	Kitchen          *bool              `json:"kitchen"`
	Wifi             *bool              `json:"wifi"`
	BikeStorage      *bool              `json:"bike_storage"`
	DisabilityAccess *bool              `json:"disability_access"`
	Notes            *string            `json:"notes"`
	Lat              *float64           `json:"lat"`
	Lng              *float64           `json:"lng"`
	GPSPrecision     *string            `json:"gps_precision"`
	IsRegistered     bool               `json:"is_registered"`

	AvailabilityStatus    model.AvailabilityStatus `json:"availability_status"`
	Capacity              *int                     `json:"capacity"`
	AvailabilityUpdatedAt *time.Time               `json:"availability_updated_at"`
}

// newListingItem classifies v at now and applies the locale overrides.
func newListingItem(v model.ListingView, now time.Time, window time.Duration, locale string) ListingItem {
	rec := v.Record()
	status := availability.Derive(rec, now, window)
	it := ListingItem{
		ID:                    v.ID,
		Stage:                 v.Stage,
		Town:                  v.Town,
		Name:                  v.Name,
		Type:                  v.Type,
		Email:                 v.Email,
		Website:               v.Website,
		Phone:                 v.Phone,
		Address:               v.Address,
		Host:                  v.Host,
		OpenSeason:            v.OpenSeason,
		SharedBeds:            v.SharedBeds,
		PriceBed:              v.PriceBed,
		PrivateRooms:          v.PrivateRooms,
		PriceRoom:             v.PriceRoom,
		Breakfast:             v.Breakfast,
		Dinner:                v.Dinner,
		Kitchen:               v.Kitchen,
		Wifi:                  v.Wifi,
		BikeStorage:           v.BikeStorage,
		DisabilityAccess:      v.DisabilityAccess,
		Notes:                 v.Notes,
		Lat:                   v.Lat,
		Lng:                   v.Lng,
		GPSPrecision:          v.GPSPrecision,
		IsRegistered:          v.IsRegistered,
		AvailabilityStatus:    status,
		Capacity:              availability.PublicCapacity(rec, status),
		AvailabilityUpdatedAt: v.AvailabilityUpdatedAt,
	}
	if tr, ok := v.Translations[normalizeLocale(locale)]; ok {
		if tr.Name != "" {
			it.Name = tr.Name
		}
		it.Description = tr.Description
	}
	return it
}

// normalizeLocale maps "en-GB" or "EN" to "en"; unsupported locales map
// to "".
func normalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if !supportedLocales[l] {
		return ""
	}
	return l
}
