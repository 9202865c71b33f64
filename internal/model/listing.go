package model

import (
    "database/sql/driver"
    "encoding/json"
    "fmt"
    "time"
)

// ListingType classifies an accommodation.
type ListingType string

const (
    TypeGite        ListingType = "gite"
    TypeChambreHote ListingType = "chambre_hote"
    TypeHotel       ListingType = "hotel"
    TypeCamping     ListingType = "camping"
    TypeAuberge     ListingType = "auberge"
    TypeOther       ListingType = "other"
)

// GPS precision tags.  "town" means the coordinates point at the town
// centre rather than the building.
const (
    PrecisionExact = "exact"
    PrecisionTown  = "town"
)

// Listing mirrors a row of the externally managed `listings` table.
// Nullable columns are pointers.
type Listing struct {
    ID               string       `db:"id"`
    Stage            int          `db:"stage"`
    Town             string       `db:"town"`
    Name             string       `db:"name"`
    Type             *ListingType `db:"type"`
    Email            *string      `db:"email"`
    Website          *string      `db:"website"`
    Phone            *string      `db:"phone"`
    Address          *string      `db:"address"`
    Host             *string      `db:"host"`
    OpenSeason       *string      `db:"open_season"`
    SharedBeds       *string      `db:"shared_beds"`
    PriceBed         *string      `db:"price_bed"`
    PrivateRooms     *string      `db:"private_rooms"`
    PriceRoom        *string      `db:"price_room"`
    Breakfast        *bool        `db:"breakfast"`
    Dinner           *bool        `db:"dinner"`
    Kitchen          *bool        `db:"kitchen"`
    Wifi             *bool        `db:"wifi"`
    BikeStorage      *bool        `db:"bike_storage"`
    DisabilityAccess *bool        `db:"disability_access"`
    Notes            *string      `db:"notes"`
    Lat              *float64     `db:"lat"`
    Lng              *float64     `db:"lng"`
    GPSPrecision     *string      `db:"gps_precision"`
    Translations     Translations `db:"translations"`
    ProviderEmail    *string      `db:"provider_email"`
    IsRegistered     bool         `db:"is_registered"`
}

// ListingView is a listing joined with its availability row, the shape the
// public map and the provider dashboard read.  The availability columns are
// all nil when the listing has no record yet.
type ListingView struct {
    Listing
    IsAvailable           *bool      `db:"is_available"`
    Capacity              *int       `db:"capacity"`
    AvailabilityUpdatedAt *time.Time `db:"availability_updated_at"`
}

// Record rebuilds the availability record carried by the view, or nil when
// the listing has none.
func (v ListingView) Record() *AvailabilityRecord {
    if v.AvailabilityUpdatedAt == nil {
        return nil
    }
    return &AvailabilityRecord{
        ListingID:   v.ID,
        IsAvailable: v.IsAvailable,
        Capacity:    v.Capacity,
        UpdatedAt:   *v.AvailabilityUpdatedAt,
    }
}

// Translation holds per-locale text overrides.
type Translation struct {
    Name        string `json:"name,omitempty"`
    Description string `json:"description,omitempty"`
}

// Translations maps a locale code ("fr", "en", ...) to its overrides.  It
// is stored as a JSON document.
type Translations map[string]Translation

// Scan implements sql.Scanner.
func (t *Translations) Scan(src any) error {
    var raw []byte
    switch v := src.(type) {
    case nil:
        *t = nil
        return nil
    case []byte:
        raw = v
    case string:
        raw = []byte(v)
    default:
        return fmt.Errorf("translations: unsupported type %T", src)
    }
    if len(raw) == 0 {
        *t = nil
        return nil
    }
    out := Translations{}
    if err := json.Unmarshal(raw, &out); err != nil {
        return fmt.Errorf("translations: %w", err)
    }
    *t = out
    return nil
}

// Value implements driver.Valuer.
func (t Translations) Value() (driver.Value, error) {
    if t == nil {
        return "{}", nil
    }
    b, err := json.Marshal(t)
    if err != nil {
        return nil, err
    }
    return string(b), nil
}
