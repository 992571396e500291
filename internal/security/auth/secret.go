package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/bookinglean/internal/domain"
)

// BcryptVerifier implements domain.SecretVerifier against bcrypt hashes.
// The secretRef handed around by the login flow is the stored hash; raw
// secrets are only ever passed through, never retained.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a bcrypt secret verifier
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Verify compares the supplied secret against the stored hash. Any
// mismatch, including a malformed hash, reports ErrSecretMismatch so the
// caller cannot distinguish why verification failed.
func (v *BcryptVerifier) Verify(_ context.Context, secretRef, supplied string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(secretRef), []byte(supplied)); err != nil {
		return domain.ErrSecretMismatch
	}
	return nil
}

// HashSecret produces a bcrypt hash for seeding and tests.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
