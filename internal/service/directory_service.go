package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/dodocesoir/internal/availability"
	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/repository"
)

// ListingFilter narrows the public listing. Zero values disable a filter.
type ListingFilter struct {
	Query         string // case-insensitive substring of name or town
	Stage         int
	AvailableOnly bool
	Locale        string
}

// ListingPage is the public listing response.  Total counts every
// listing, Count the ones left after filtering.  Stages lists every
// stage present in the data, filtered or not.
type ListingPage struct {
	Items  []ListingItem `json:"items"`
	Total  int           `json:"total"`
	Count  int           `json:"count"`
	Stages []int         `json:"stages"`
}

// DirectoryService serves the public map view.
type DirectoryService struct {
	listings ListingStore
	clock    availability.Clock
	window   time.Duration
}

func NewDirectoryService(listings ListingStore, clock availability.Clock, window time.Duration) *DirectoryService {
	if clock == nil {
		clock = availability.SystemClock{}
	}
	return &DirectoryService{listings: listings, clock: clock, window: window}
}

// List returns the listings matching f with their derived status, in
// stage then town order.
func (s *DirectoryService) List(ctx context.Context, f ListingFilter) (ListingPage, error) {
	views, err := s.listings.ListViews(ctx)
	if err != nil {
		return ListingPage{}, storeErr(err)
	}
	now := s.clock.Now()
	q := strings.ToLower(strings.TrimSpace(f.Query))

	page := ListingPage{Items: []ListingItem{}, Total: len(views), Stages: stagesOf(views)}
	for _, v := range views {
		it := newListingItem(v, now, s.window, f.Locale)
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) &&
			!strings.Contains(strings.ToLower(v.Name), q) &&
			!strings.Contains(strings.ToLower(v.Town), q) {
			continue
		}
		if f.Stage != 0 && v.Stage != f.Stage {
			continue
		}
		if f.AvailableOnly && it.AvailabilityStatus != model.StatusAvailable {
			continue
		}
		page.Items = append(page.Items, it)
	}
	page.Count = len(page.Items)
	return page, nil
}

// Get returns one listing.  It returns repository.ErrNotFound unwrapped
// when the id is unknown.
func (s *DirectoryService) Get(ctx context.Context, id, locale string) (ListingItem, error) {
	v, err := s.listings.GetView(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ListingItem{}, err
	}
	if err != nil {
		return ListingItem{}, storeErr(err)
	}
	return newListingItem(v, s.clock.Now(), s.window, locale), nil
}

// Stages returns the sorted distinct route stages.
func (s *DirectoryService) Stages(ctx context.Context) ([]int, error) {
	views, err := s.listings.ListViews(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return stagesOf(views), nil
}

func stagesOf(views []model.ListingView) []int {
	seen := make(map[int]bool)
	out := []int{}
	for _, v := range views {
		if !seen[v.Stage] {
			seen[v.Stage] = true
			out = append(out, v.Stage)
		}
	}
	sort.Ints(out)
	return out
}
