package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

// dummyHash is compared against when no account exists so that unknown and
// known emails cost the same bcrypt work.
var dummyHash = []byte("$2a$12$C6UzMDM.H6dfI/f/IKcEeO6ZKUJj5xqvFHW8fE1Lh3yoQ8JtFdvWW")

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, BcryptCost)
}

// HashPasswordWithCost hashes with an explicit bcrypt cost (tests use bcrypt.MinCost)
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CompareDummy burns one bcrypt comparison and always reports a mismatch
func CompareDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return bcrypt.ErrMismatchedHashAndPassword
}
