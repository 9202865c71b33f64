// Package otp issues and stores one-time sign-in codes.  Only a bcrypt hash
// of each code is kept, keyed by the normalized email it was sent to.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// ErrNoCode is returned when no live code exists for an email, either
// because none was requested or because it expired or was consumed.
var ErrNoCode = errors.New("otp: no code")

// Entry is the stored state of one outstanding code.
type Entry struct {
	Hash     string
	Attempts int
	IssuedAt time.Time
}

// Store keeps at most one outstanding code per email.  Implementations
// must expire entries after the ttl given to Save.
type Store interface {
	Save(ctx context.Context, email string, e Entry, ttl time.Duration) error
	Get(ctx context.Context, email string) (Entry, error)
	// IncrAttempts records one verification attempt and returns the new count.  It
	// returns ErrNoCode if the entry is gone.
	IncrAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
	// Consume atomically removes the entry for email if it still holds
	// hash.  It reports whether this call removed it, so a code is
	// redeemed at most once even under concurrent verification.
	Consume(ctx context.Context, email, hash string) (bool, error)
}

// Generate returns a random numeric code of the given length.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
