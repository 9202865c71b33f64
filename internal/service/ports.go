package service

import (
	"context"
	"time"

	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/queue"
)

type ListingStore interface {
	ListViews(ctx context.Context) ([]model.ListingView, error)
	GetView(ctx context.Context, id string) (model.ListingView, error)
	FindIDsByProviderEmail(ctx context.Context, email string) ([]string, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
}

type AvailabilityStore interface {
	Get(ctx context.Context, listingID string) (model.AvailabilityRecord, error)
	Upsert(ctx context.Context, rec model.AvailabilityRecord) error
}

type LinkStore interface {
	GetByPrincipal(ctx context.Context, principalID string) (model.ProviderLink, error)
	GetByListing(ctx context.Context, listingID string) (model.ProviderLink, error)
	Create(ctx context.Context, principalID, listingID string) (model.ProviderLink, error)
}

type PrincipalStore interface {
	GetOrCreate(ctx context.Context, email string) (model.Principal, error)
	GetByID(ctx context.Context, id string) (model.Principal, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, principalID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForPrincipal(ctx context.Context, principalID string) error
}

// CodePublisher hands a sign-in code to the mail pipeline.
type CodePublisher interface {
	PublishOTPRequested(ctx context.Context, ev queue.OTPRequestedEvent) error
}
