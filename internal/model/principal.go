package model

import "time"

// Principal represents an authenticated provider identity as stored in the
// `principals` table.  A principal is identified by a verified email
// address and is created the first time a one-time code is verified for
// that address.
//
// Fields:
//  ID          – uuid primary key.
//  Email       – unique, lower-cased email address.
//  CreatedAt   – timestamp of creation.
//  LastLoginAt – timestamp of the last successful code verification.
type Principal struct {
    ID          string     `db:"id"`            // principals.id
    Email       string     `db:"email"`         // principals.email
    CreatedAt   time.Time  `db:"created_at"`    // principals.created_at
    LastLoginAt *time.Time `db:"last_login_at"` // principals.last_login_at (nullable)
}

// ProviderLink associates one principal with the one listing they may
// update.  Both columns are unique, so the association is one-to-one.
type ProviderLink struct {
    PrincipalID string    `db:"principal_id"` // provider_links.principal_id
    ListingID   string    `db:"listing_id"`   // provider_links.listing_id
    CreatedAt   time.Time `db:"created_at"`   // provider_links.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA‑256 hash.
type RefreshToken struct {
    ID          uint64     `db:"id"`           // refresh_tokens.id
    PrincipalID string     `db:"principal_id"` // refresh_tokens.principal_id
    TokenHash   string     `db:"token_hash"`   // refresh_tokens.token_hash
    ExpiresAt   time.Time  `db:"expires_at"`   // refresh_tokens.expires_at
    RevokedAt   *time.Time `db:"revoked_at"`   // refresh_tokens.revoked_at (nullable)
    CreatedAt   time.Time  `db:"created_at"`   // refresh_tokens.created_at
}
