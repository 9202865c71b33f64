// Package service holds the provider and directory use cases.  Services
// depend on small store interfaces so they can be exercised against fakes;
// the sqlx repositories satisfy them in production.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller is not signed in or is
	// not the linked provider of the listing it tries to change.  It is
	// always returned before anything is written.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable wraps any failure of the relational store.  It
	// means "could not determine", never "not found".
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInvalidCapacity = errors.New("capacity must be a positive integer")

	ErrInvalidEmail  = errors.New("invalid email")
	ErrUnknownEmail  = errors.New("email is not registered on any listing")
	ErrInvalidCode   = errors.New("invalid or expired code")
	ErrResendTooSoon = errors.New("a code was sent recently, try again later")
	ErrInvalidToken  = errors.New("invalid refresh token")
)

// storeErr tags a driver error as a store failure while keeping the
// original message for logs.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
