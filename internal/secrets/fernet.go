package secrets

import (
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
)

// Sealer encrypts and decrypts short secrets with a fernet key. The official
// source API token is stored sealed in the system_setting table so the
// database file never holds it in the clear.
type Sealer struct {
	key *fernet.Key
}

// NewSealer creates a Sealer from a base64-encoded fernet key.
func NewSealer(encodedKey string) (*Sealer, error) {
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fernet key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts and signs the plaintext, returning a fernet token.
func (s *Sealer) Seal(plaintext string) (string, error) {
	token, err := fernet.EncryptAndSign([]byte(plaintext), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to seal secret: %w", err)
	}
	return string(token), nil
}

// Unseal verifies and decrypts a fernet token. Tokens do not expire; the
// stored official source token stays valid until rotated.
func (s *Sealer) Unseal(token string) (string, error) {
	plaintext := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{s.key})
	if plaintext == nil {
		return "", errors.New("failed to unseal secret: invalid token")
	}
	return string(plaintext), nil
}
