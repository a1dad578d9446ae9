package auth

// WHY BCRYPT?
// A password hash has to be slow to compute, otherwise a leaked users table
// can be brute-forced offline at billions of guesses per second. bcrypt has
// a tunable cost: every +1 doubles the work. It also stores its own random
// salt inside the hash string, so there is no separate salt column to keep.
//
// The one sharp edge is the 72-byte input limit. bcrypt silently ignores
// anything past it, which is why Hash refuses longer passwords and Verify
// treats them as a mismatch.

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used in production (~250ms per hash).
const DefaultBcryptCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs would be silently
// truncated by the library, so Hash rejects them instead.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
// Any other Verify error means the stored hash itself is unusable.
var ErrPasswordMismatch = errors.New("auth: password does not match")

// PasswordService hashes and verifies passwords with bcrypt.
//
// The cost is a field rather than a constant so tests can use the bcrypt
// minimum (4) and run in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService with the given cost.
// A cost outside bcrypt's range falls back to DefaultBcryptCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. The output embeds salt and
// cost, e.g. $2a$12$<salt><hash>, and is stored as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash, ErrPasswordMismatch when it
// does not, and a wrapped error when hash is not a valid bcrypt hash.
// The comparison is constant-time.
//
// bcrypt only reads the first 72 bytes, so "<stored password>+anything"
// would otherwise match. No stored password can be longer than
// MaxPasswordBytes, so a longer input is always a mismatch. It still pays
// for one comparison to keep the timing the same as a normal miss.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if len(plaintext) > MaxPasswordBytes {
		_ = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext[:MaxPasswordBytes]))
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("auth: comparing password hash: %w", err)
}
