package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/iliyamo/dodocesoir/internal/availability"
	"github.com/iliyamo/dodocesoir/internal/handler"
	"github.com/iliyamo/dodocesoir/internal/otp"
	"github.com/iliyamo/dodocesoir/internal/queue"
	"github.com/iliyamo/dodocesoir/internal/repository"
	"github.com/iliyamo/dodocesoir/internal/service"
)

const secret = "router-secret"

const schema = `
CREATE TABLE listings(
  id TEXT PRIMARY KEY,
  stage INTEGER NOT NULL,
  town TEXT NOT NULL,
  name TEXT NOT NULL,
  type TEXT, email TEXT, website TEXT, phone TEXT, address TEXT, host TEXT,
  open_season TEXT, shared_beds TEXT, price_bed TEXT, private_rooms TEXT, price_room TEXT,
  breakfast BOOLEAN, dinner BOOLEAN, kitchen BOOLEAN, wifi BOOLEAN,
  bike_storage BOOLEAN, disability_access BOOLEAN,
  notes TEXT, lat REAL, lng REAL, gps_precision TEXT,
  translations TEXT, provider_email TEXT,
  is_registered BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE availability(
  listing_id TEXT PRIMARY KEY REFERENCES listings(id),
  is_available BOOLEAN,
  capacity INTEGER,
  updated_at DATETIME NOT NULL
);
CREATE TABLE principals(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  created_at DATETIME NOT NULL,
  last_login_at DATETIME
);
CREATE TABLE provider_links(
  principal_id TEXT NOT NULL UNIQUE,
  listing_id TEXT NOT NULL UNIQUE,
  created_at DATETIME NOT NULL
);
CREATE TABLE refresh_tokens(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  principal_id TEXT NOT NULL,
  token_hash TEXT NOT NULL UNIQUE,
  expires_at DATETIME NOT NULL,
  revoked_at DATETIME,
  created_at DATETIME NOT NULL
);
INSERT INTO listings(id, stage, town, name, email, provider_email, lat, lng, gps_precision, is_registered) VALUES
  ('beilari', 1, 'Saint-Jean-Pied-de-Port', 'Gîte Beilari', 'contact@beilari.fr', NULL, 43.16, -1.23, 'exact', 1),
  ('ronces', 2, 'Roncesvalles', 'Colegiata', 'info@ronces.es', 'owner@ronces.es', 43.01, -1.32, 'town', 1),
  ('larr-a', 3, 'Larrasoaña', 'Albergue A', 'shared@example.org', NULL, NULL, NULL, NULL, 0),
  ('larr-b', 3, 'Larrasoaña', 'Albergue B', 'shared@example.org', NULL, NULL, NULL, NULL, 0);
`

// capturePublisher records the codes instead of talking to RabbitMQ.
type capturePublisher struct {
	mu    sync.Mutex
	codes map[string]string
}

func (p *capturePublisher) PublishOTPRequested(_ context.Context, ev queue.OTPRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[ev.Email] = ev.Code
	return nil
}

func (p *capturePublisher) code(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codes[email]
}

type app struct {
	e   *echo.Echo
	db  *sqlx.DB
	pub *capturePublisher
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}

	listings := repository.NewListingRepo(db)
	links := repository.NewLinkRepo(db)
	clock := availability.SystemClock{}
	window := availability.DefaultFreshnessWindow

	pub := &capturePublisher{codes: map[string]string{}}
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:      secret,
		AccessTTLMin:   15,
		RefreshTTLDays: 30,
		BcryptCost:     4,
		CodeLength:     6,
		CodeTTL:        10 * time.Minute,
		MaxAttempts:    5,
		ResendInterval: time.Minute,
	}, listings, repository.NewPrincipalRepo(db), repository.NewTokenRepo(db), otp.NewMemoryStore(), pub, nil, clock)
	resolver := service.NewLinkResolver(links, listings)

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e, Deps{
		JWTSecret: secret,
		Health:    &handler.HealthHandler{DB: db},
		Listings:  handler.NewListingHandler(service.NewDirectoryService(listings, clock, window)),
		Auth:      handler.NewAuthHandler(auth, secret),
		Provider: handler.NewProviderHandler(
			service.NewAvailabilityService(links, repository.NewAvailabilityRepo(db), listings, resolver, clock, window),
			resolver,
		),
	})
	return &app{e: e, db: db, pub: pub}
}

func (a *app) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Principal struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"principal"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func (a *app) signIn(t *testing.T, email string) session {
	t.Helper()
	if rec := a.do(t, http.MethodPost, "/v1/auth/otp", `{"email":"`+email+`"}`, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("otp: %d %s", rec.Code, rec.Body.String())
	}
	code := a.pub.code(email)
	rec := a.do(t, http.MethodPost, "/v1/auth/verify", `{"email":"`+email+`","code":"`+code+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}
	var s session
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	return s
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestPublicDirectory(t *testing.T) {
	a := newApp(t)

	if rec := a.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	if rec := a.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d %s", rec.Code, rec.Body.String())
	}

	rec := a.do(t, http.MethodGet, "/v1/listings", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "owner@ronces.es") {
		t.Error("provider email leaked into the public listing")
	}
	var page struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"availability_status"`
		} `json:"items"`
		Total  int   `json:"total"`
		Count  int   `json:"count"`
		Stages []int `json:"stages"`
	}
	decode(t, rec, &page)
	if page.Total != 4 || page.Count != 4 || len(page.Stages) != 3 {
		t.Fatalf("unexpected page %+v", page)
	}
	for _, it := range page.Items {
		if it.Status != "unknown" {
			t.Errorf("%s: status = %q, want unknown", it.ID, it.Status)
		}
	}

	tests := []struct {
		path string
		want int
	}{
		{"/v1/listings?stage=2", http.StatusOK},
		{"/v1/listings?stage=zero", http.StatusBadRequest},
		{"/v1/listings?available_only=maybe", http.StatusBadRequest},
		{"/v1/listings/beilari?locale=en-GB", http.StatusOK},
		{"/v1/listings/missing", http.StatusNotFound},
		{"/v1/stages", http.StatusOK},
	}
	for _, tt := range tests {
		if rec := a.do(t, http.MethodGet, tt.path, "", ""); rec.Code != tt.want {
			t.Errorf("GET %s: %d, want %d (%s)", tt.path, rec.Code, tt.want, rec.Body.String())
		}
	}

	var stages []int
	decode(t, a.do(t, http.MethodGet, "/v1/stages", "", ""), &stages)
	if len(stages) != 3 || stages[0] != 1 || stages[2] != 3 {
		t.Errorf("stages = %v", stages)
	}
}

func TestStoreDownIsNotNotFound(t *testing.T) {
	a := newApp(t)
	_ = a.db.Close()

	for _, path := range []string{"/v1/listings", "/v1/listings/beilari", "/v1/stages"} {
		rec := a.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s: %d, want 503", path, rec.Code)
		}
	}
	if rec := a.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with closed db: %d", rec.Code)
	}
}

func TestRequestCode(t *testing.T) {
	a := newApp(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"email":"nope"}`, http.StatusBadRequest},
		{"missing", `{}`, http.StatusBadRequest},
		{"unknown", `{"email":"stranger@example.org"}`, http.StatusNotFound},
		{"registered", `{"email":"Contact@Beilari.fr"}`, http.StatusAccepted},
		{"resend too soon", `{"email":"contact@beilari.fr"}`, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := a.do(t, http.MethodPost, "/v1/auth/otp", tt.body, ""); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := a.do(t, http.MethodPost, "/v1/auth/verify", `{"email":"contact@beilari.fr","code":"abc"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric code: %d", rec.Code)
	}
	wrong := "000000"
	if a.pub.code("contact@beilari.fr") == wrong {
		wrong = "111111"
	}
	rec = a.do(t, http.MethodPost, "/v1/auth/verify", `{"email":"contact@beilari.fr","code":"`+wrong+`"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong code: %d", rec.Code)
	}
}

func TestProviderFlow(t *testing.T) {
	a := newApp(t)

	if rec := a.do(t, http.MethodGet, "/v1/provider/listing", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous dashboard: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPut, "/v1/provider/availability", `{"is_available":true}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous submit: %d", rec.Code)
	}

	s := a.signIn(t, "owner@ronces.es")

	var info struct {
		Linked    bool    `json:"linked"`
		ListingID *string `json:"listing_id"`
	}
	decode(t, a.do(t, http.MethodGet, "/v1/provider/session", "", s.Access.Token), &info)
	if !info.Linked || info.ListingID == nil || *info.ListingID != "ronces" {
		t.Fatalf("unexpected session %+v", info)
	}

	type record struct {
		ListingID string `json:"listing_id"`
		Capacity  *int   `json:"capacity"`
		Status    string `json:"availability_status"`
	}
	rec := a.do(t, http.MethodPut, "/v1/provider/availability", `{"is_available":true,"capacity":3}`, s.Access.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	var r record
	decode(t, rec, &r)
	if r.ListingID != "ronces" || r.Status != "available" || r.Capacity == nil || *r.Capacity != 3 {
		t.Fatalf("unexpected record %+v", r)
	}

	var page struct {
		Count int `json:"count"`
		Items []struct {
			ID       string `json:"id"`
			Capacity *int   `json:"capacity"`
		} `json:"items"`
	}
	decode(t, a.do(t, http.MethodGet, "/v1/listings?available_only=true", "", ""), &page)
	if page.Count != 1 || page.Items[0].ID != "ronces" || page.Items[0].Capacity == nil || *page.Items[0].Capacity != 3 {
		t.Fatalf("public view after submit: %+v", page)
	}

	rec = a.do(t, http.MethodPut, "/v1/provider/availability", `{"is_available":true,"capacity":-1}`, s.Access.Token)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "capacity") {
		t.Errorf("negative capacity: %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(t, http.MethodPut, "/v1/provider/availability", `{"capacity":2}`, s.Access.Token)
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "{\"error\":\"is_available is required\"}\n" {
		t.Errorf("missing flag: %d %s", rec.Code, rec.Body.String())
	}

	for _, body := range []string{`{"is_available":false,"capacity":5}`, `{"is_available":false,"capacity":-3}`} {
		rec = a.do(t, http.MethodPut, "/v1/provider/availability", body, s.Access.Token)
		if rec.Code != http.StatusOK {
			t.Fatalf("full submit %s: %d %s", body, rec.Code, rec.Body.String())
		}
		r = record{}
		decode(t, rec, &r)
		if r.Status != "full" || r.Capacity != nil {
			t.Fatalf("full submit %s: %+v", body, r)
		}
	}
	var stored *int
	if err := a.db.Get(&stored, `SELECT capacity FROM availability WHERE listing_id = 'ronces'`); err != nil || stored != nil {
		t.Fatalf("stored capacity = %v (%v), want NULL", stored, err)
	}

	var d struct {
		Linked  bool `json:"linked"`
		Listing *struct {
			ID string `json:"id"`
		} `json:"listing"`
		Status *string `json:"availability_status"`
	}
	decode(t, a.do(t, http.MethodGet, "/v1/provider/listing", "", s.Access.Token), &d)
	if !d.Linked || d.Listing == nil || d.Listing.ID != "ronces" || d.Status == nil || *d.Status != "full" {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestUnlinkedProviderCannotWrite(t *testing.T) {
	a := newApp(t)
	s := a.signIn(t, "shared@example.org")

	var d struct {
		Linked bool `json:"linked"`
	}
	rec := a.do(t, http.MethodGet, "/v1/provider/listing", "", s.Access.Token)
	decode(t, rec, &d)
	if rec.Code != http.StatusOK || d.Linked {
		t.Fatalf("ambiguous email must stay unlinked: %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodPut, "/v1/provider/availability", `{"is_available":true}`, s.Access.Token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unlinked submit: %d, want 403", rec.Code)
	}
	var n int
	if err := a.db.Get(&n, `SELECT COUNT(*) FROM availability`); err != nil || n != 0 {
		t.Fatalf("availability rows = %d (%v), want 0", n, err)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	a := newApp(t)
	s := a.signIn(t, "contact@beilari.fr")

	rec := a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+s.Refresh.Token+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	var next session
	decode(t, rec, &next)

	if rec := a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+s.Refresh.Token+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("rotated token reused: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/logout", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("logout without credentials: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+next.Refresh.Token+`"}`, next.Access.Token); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+next.Refresh.Token+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: %d", rec.Code)
	}
}
