package account

import "golang.org/x/crypto/bcrypt"

// PasswordHasher defines minimal hashing interface (abstract so we can swap
// to argon2 later). Implementations must salt internally and never log or
// return the raw secret.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation. Cost is fixed per deployment; zero means
// bcrypt.DefaultCost.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify fails closed: a malformed stored hash compares as false rather than
// erroring out.
func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
