package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/dodocesoir/internal/mailer"
	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/queue"
	"github.com/iliyamo/dodocesoir/internal/repository"
)

// MockListingStore serves a fixed slice of views.
type MockListingStore struct {
	views     []model.ListingView
	err       error
	findCalls int
}

func (m *MockListingStore) ListViews(ctx context.Context) ([]model.ListingView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.views, nil
}

func (m *MockListingStore) GetView(ctx context.Context, id string) (model.ListingView, error) {
	if m.err != nil {
		return model.ListingView{}, m.err
	}
	for _, v := range m.views {
		if v.ID == id {
			return v, nil
		}
	}
	return model.ListingView{}, repository.ErrNotFound
}

func (m *MockListingStore) FindIDsByProviderEmail(ctx context.Context, email string) ([]string, error) {
	m.findCalls++
	if m.err != nil {
		return nil, m.err
	}
	var ids []string
	for _, v := range m.views {
		match := v.Email
		if v.ProviderEmail != nil {
			match = v.ProviderEmail
		}
		if match != nil && strings.EqualFold(*match, email) {
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

func (m *MockListingStore) EmailRegistered(ctx context.Context, email string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, v := range m.views {
		if (v.Email != nil && strings.EqualFold(*v.Email, email)) ||
			(v.ProviderEmail != nil && strings.EqualFold(*v.ProviderEmail, email)) {
			return true, nil
		}
	}
	return false, nil
}

// MockLinkStore keeps links in memory and enforces both unique keys.
type MockLinkStore struct {
	mu        sync.Mutex
	links     []model.ProviderLink
	getErr    error
	createErr error
	creates   int
}

func (m *MockLinkStore) GetByPrincipal(ctx context.Context, principalID string) (model.ProviderLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return model.ProviderLink{}, m.getErr
	}
	for _, l := range m.links {
		if l.PrincipalID == principalID {
			return l, nil
		}
	}
	return model.ProviderLink{}, repository.ErrNotFound
}

func (m *MockLinkStore) GetByListing(ctx context.Context, listingID string) (model.ProviderLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return model.ProviderLink{}, m.getErr
	}
	for _, l := range m.links {
		if l.ListingID == listingID {
			return l, nil
		}
	}
	return model.ProviderLink{}, repository.ErrNotFound
}

func (m *MockLinkStore) Create(ctx context.Context, principalID, listingID string) (model.ProviderLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return model.ProviderLink{}, m.createErr
	}
	for _, l := range m.links {
		if l.PrincipalID == principalID || l.ListingID == listingID {
			return model.ProviderLink{}, repository.ErrConflict
		}
	}
	l := model.ProviderLink{PrincipalID: principalID, ListingID: listingID, CreatedAt: time.Now().UTC()}
	m.links = append(m.links, l)
	return l, nil
}

// MockAvailabilityStore records every upsert.
type MockAvailabilityStore struct {
	records   map[string]model.AvailabilityRecord
	upserts   int
	upsertErr error
}

func (m *MockAvailabilityStore) Get(ctx context.Context, listingID string) (model.AvailabilityRecord, error) {
	rec, ok := m.records[listingID]
	if !ok {
		return model.AvailabilityRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

func (m *MockAvailabilityStore) Upsert(ctx context.Context, rec model.AvailabilityRecord) error {
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.records == nil {
		m.records = make(map[string]model.AvailabilityRecord)
	}
	m.records[rec.ListingID] = rec
	return nil
}

// MockPrincipalStore creates principals with sequential ids.
type MockPrincipalStore struct {
	mu      sync.Mutex
	byEmail map[string]model.Principal
	err     error
	touched int
}

func (m *MockPrincipalStore) GetOrCreate(ctx context.Context, email string) (model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Principal{}, m.err
	}
	if m.byEmail == nil {
		m.byEmail = make(map[string]model.Principal)
	}
	if p, ok := m.byEmail[email]; ok {
		return p, nil
	}
	p := model.Principal{ID: "p-" + email, Email: email, CreatedAt: time.Now().UTC()}
	m.byEmail[email] = p
	return p, nil
}

func (m *MockPrincipalStore) GetByID(ctx context.Context, id string) (model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Principal{}, m.err
	}
	for _, p := range m.byEmail {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

func (m *MockPrincipalStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	return m.err
}

type tokenRow struct {
	principalID string
	exp         time.Time
	revoked     bool
}

// MockTokenStore keeps refresh token hashes in a map.
type MockTokenStore struct {
	mu   sync.Mutex
	rows map[string]*tokenRow
}

func (m *MockTokenStore) StoreRefresh(ctx context.Context, principalID, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[string]*tokenRow)
	}
	m.rows[tokenHash] = &tokenRow{principalID: principalID, exp: exp}
	return nil
}

func (m *MockTokenStore) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[tokenHash]
	if !ok || r.revoked || time.Now().After(r.exp) {
		return "", repository.ErrNotFound
	}
	return r.principalID, nil
}

func (m *MockTokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[tokenHash]; ok {
		r.revoked = true
	}
	return nil
}

func (m *MockTokenStore) RevokeAllForPrincipal(ctx context.Context, principalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.principalID == principalID {
			r.revoked = true
		}
	}
	return nil
}

// MockPublisher captures published events.
type MockPublisher struct {
	events []queue.OTPRequestedEvent
	err    error
}

func (m *MockPublisher) PublishOTPRequested(ctx context.Context, ev queue.OTPRequestedEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

// MockSender captures mailed messages.
type MockSender struct {
	sent []mailer.Message
	err  error
}

func (m *MockSender) Send(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
func timePtr(t time.Time) *time.Time {
	return &t
}
