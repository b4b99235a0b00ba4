// Package auth verifies the shared API key presented on generation
// endpoints. The deployment holds only a bcrypt hash of the key; when no
// hash is configured the service runs open, which is the demo default.
package auth

import (
	"github.com/foodanalyzer/food-analyzer/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type Verifier struct {
	keyHash string
}

func NewVerifier(keyHash string) *Verifier {
	return &Verifier{keyHash: keyHash}
}

// Open reports whether the service accepts requests without a key.
func (v *Verifier) Open() bool {
	return v.keyHash == ""
}

func (v *Verifier) Verify(key string) error {
	if v.keyHash == "" {
		return nil
	}
	if key == "" {
		return domain.ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(v.keyHash), []byte(key)); err != nil {
		return domain.ErrInvalidAPIKey
	}
	return nil
}

// HashKey produces a bcrypt hash suitable for the API_KEY_HASH setting.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
