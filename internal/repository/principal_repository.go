package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dodocesoir/internal/model"
)

type PrincipalRepo struct{ db *sqlx.DB }

func NewPrincipalRepo(db *sqlx.DB) *PrincipalRepo { return &PrincipalRepo{db: db} }

// Create inserts a principal for email and returns it.  Returns ErrConflict
// if the email is already taken.
func (r *PrincipalRepo) Create(ctx context.Context, email string) (model.Principal, error) {
	p := model.Principal{
		ID:        uuid.NewString(),
		Email:     normalizeEmail(email),
		CreatedAt: time.Now().UTC(),
	}
	q := r.db.Rebind("INSERT INTO principals (id, email, created_at) VALUES (?,?,?)")
	if _, err := r.db.ExecContext(ctx, q, p.ID, p.Email, p.CreatedAt); err != nil {
		if isDuplicate(err) {
			return model.Principal{}, ErrConflict
		}
		return model.Principal{}, err
	}
	return p, nil
}

// GetByEmail fetches a principal by normalized email.
func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (model.Principal, error) {
	return r.getOne(ctx, "SELECT id,email,created_at,last_login_at FROM principals WHERE email=?", normalizeEmail(email))
}

// GetByID fetches a principal by id.
func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (model.Principal, error) {
	return r.getOne(ctx, "SELECT id,email,created_at,last_login_at FROM principals WHERE id=?", id)
}

// GetOrCreate returns the principal for email, creating it on first sign-in.
// A concurrent creation of the same email is resolved by reading back the
// winner's row.
func (r *PrincipalRepo) GetOrCreate(ctx context.Context, email string) (model.Principal, error) {
	p, err := r.GetByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Principal{}, err
	}
	p, err = r.Create(ctx, email)
	if errors.Is(err, ErrConflict) {
		return r.GetByEmail(ctx, email)
	}
	return p, err
}

// TouchLogin records a successful sign-in.
func (r *PrincipalRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	q := r.db.Rebind("UPDATE principals SET last_login_at=? WHERE id=?")
	_, err := r.db.ExecContext(ctx, q, at.UTC(), id)
	return err
}

func (r *PrincipalRepo) getOne(ctx context.Context, q string, arg string) (model.Principal, error) {
	var p model.Principal
	if err := r.db.GetContext(ctx, &p, r.db.Rebind(q), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Principal{}, ErrNotFound
		}
		return model.Principal{}, err
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
