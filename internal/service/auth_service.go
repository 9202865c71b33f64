package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/dodocesoir/internal/availability"
	"github.com/iliyamo/dodocesoir/internal/mailer"
	"github.com/iliyamo/dodocesoir/internal/model"
	"github.com/iliyamo/dodocesoir/internal/otp"
	"github.com/iliyamo/dodocesoir/internal/queue"
	"github.com/iliyamo/dodocesoir/internal/repository"
	"github.com/iliyamo/dodocesoir/internal/utils"
)

// AuthConfig carries the token and one-time code settings.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	CodeLength     int
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendInterval time.Duration
}

// Session is the result of a successful sign-in or refresh.
type Session struct {
	Principal model.Principal
	Access    utils.AccessToken
	Refresh   utils.RefreshToken
}

// AuthService implements passwordless sign-in: a code is mailed to an
// email registered on a listing, and verifying it yields a session.
type AuthService struct {
	cfg        AuthConfig
	listings   ListingStore
	principals PrincipalStore
	tokens     TokenStore
	codes      otp.Store
	publisher  CodePublisher
	fallback   mailer.Sender
	clock      availability.Clock
	validate   *validator.Validate
}

func NewAuthService(cfg AuthConfig, listings ListingStore, principals PrincipalStore, tokens TokenStore,
	codes otp.Store, publisher CodePublisher, fallback mailer.Sender, clock availability.Clock) *AuthService {
	if clock == nil {
		clock = availability.SystemClock{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	return &AuthService{
		cfg:        cfg,
		listings:   listings,
		principals: principals,
		tokens:     tokens,
		codes:      codes,
		publisher:  publisher,
		fallback:   fallback,
		clock:      clock,
		validate:   validator.New(),
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestCode sends a new sign-in code to email.  The code is handed to the
// mail queue; when the broker is unreachable it is mailed directly.
func (s *AuthService) RequestCode(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}

	ok, err := s.listings.EmailRegistered(ctx, email)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return ErrUnknownEmail
	}

	now := s.clock.Now()
	prev, err := s.codes.Get(ctx, email)
	switch {
	case err == nil:
		if s.cfg.ResendInterval > 0 && now.Sub(prev.IssuedAt) < s.cfg.ResendInterval {
			return ErrResendTooSoon
		}
	case !errors.Is(err, otp.ErrNoCode):
		return fmt.Errorf("code store: %w", err)
	}

	code, err := otp.Generate(s.cfg.CodeLength)
	if err != nil {
		return err
	}
	hash, err := utils.HashSecret(code, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.codes.Save(ctx, email, otp.Entry{Hash: hash, IssuedAt: now}, s.cfg.CodeTTL); err != nil {
		return fmt.Errorf("code store: %w", err)
	}

	if err := s.deliver(ctx, email, code, now); err != nil {
		_ = s.codes.Delete(ctx, email)
		return err
	}
	return nil
}

func (s *AuthService) deliver(ctx context.Context, email, code string, now time.Time) error {
	if s.publisher != nil {
		ev := queue.OTPRequestedEvent{
			Email:       email,
			Code:        code,
			TTLSeconds:  int(s.cfg.CodeTTL / time.Second),
			RequestedAt: now.UTC().Format(time.RFC3339),
		}
		err := s.publisher.PublishOTPRequested(ctx, ev)
		if err == nil {
			return nil
		}
		log.Printf("auth: publish code for %s failed, mailing directly: %v", email, err)
	}
	if s.fallback == nil {
		return errors.New("no mail transport configured")
	}
	return s.fallback.Send(ctx, mailer.CodeMessage(email, code, s.cfg.CodeTTL))
}

// VerifyCode checks code against the outstanding code for email.  Codes
// are single use and are burned after MaxAttempts wrong guesses.  The
// principal is created on its first successful verification.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (Session, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)

	e, err := s.codes.Get(ctx, email)
	if errors.Is(err, otp.ErrNoCode) {
		return Session{}, ErrInvalidCode
	}
	if err != nil {
		return Session{}, fmt.Errorf("code store: %w", err)
	}

	// Every check reserves an attempt first, so concurrent guesses cannot
	// get past MaxAttempts.
	n, err := s.codes.IncrAttempts(ctx, email)
	if errors.Is(err, otp.ErrNoCode) {
		return Session{}, ErrInvalidCode
	}
	if err != nil {
		return Session{}, fmt.Errorf("code store: %w", err)
	}
	if n > s.cfg.MaxAttempts {
		_ = s.codes.Delete(ctx, email)
		return Session{}, ErrInvalidCode
	}
	if code == "" || !utils.VerifySecret(e.Hash, code) {
		if n >= s.cfg.MaxAttempts {
			_ = s.codes.Delete(ctx, email)
		}
		return Session{}, ErrInvalidCode
	}

	consumed, err := s.codes.Consume(ctx, email, e.Hash)
	if err != nil {
		return Session{}, fmt.Errorf("code store: %w", err)
	}
	if !consumed {
		return Session{}, ErrInvalidCode
	}

	p, err := s.principals.GetOrCreate(ctx, email)
	if err != nil {
		return Session{}, storeErr(err)
	}
	now := s.clock.Now().UTC()
	if err := s.principals.TouchLogin(ctx, p.ID, now); err != nil {
		return Session{}, storeErr(err)
	}
	p.LastLoginAt = &now
	return s.issue(ctx, p)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrInvalidToken
	}
	hash := utils.HashRefreshRaw(raw)
	principalID, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, storeErr(err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, storeErr(err)
	}
	p, err := s.principals.GetByID(ctx, principalID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, storeErr(err)
	}
	return s.issue(ctx, p)
}

// SignOut revokes raw when given, otherwise every refresh token of
// principalID.  A token belonging to another principal is rejected.
func (s *AuthService) SignOut(ctx context.Context, principalID, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		owner, err := s.tokens.ValidateRefresh(ctx, hash)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return storeErr(err)
		}
		if principalID != "" && owner != principalID {
			return ErrInvalidToken
		}
		if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
			return storeErr(err)
		}
		return nil
	}
	if principalID == "" {
		return ErrUnauthorized
	}
	if err := s.tokens.RevokeAllForPrincipal(ctx, principalID); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, p model.Principal) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, p.ID, p.Email, utils.RoleProvider, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, p.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, storeErr(err)
	}
	return Session{Principal: p, Access: access, Refresh: refresh}, nil
}
