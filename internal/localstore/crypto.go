package localstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Key derivation parameters (argon2id).
const (
	saltSize      = 16
	keySize       = 32
	argonTime     = 1
	argonMemoryKB = 64 * 1024
	argonThreads  = 4
)

var errCiphertextTooShort = errors.New("ciphertext too short")

// sealer encrypts secret values with AES-256-GCM. The key name is bound to
// each ciphertext as additional data, so values cannot be swapped between keys.
type sealer struct {
	gcm cipher.AEAD
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func newSealer(passphrase string, salt []byte) (*sealer, error) {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemoryKB, argonThreads, keySize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &sealer{gcm: gcm}, nil
}

// seal returns base64(nonce || ciphertext).
func (s *sealer) seal(key string, plaintext []byte) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := s.gcm.Seal(nonce, nonce, plaintext, []byte(key))
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *sealer) open(key, sealed string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errCiphertextTooShort
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}

	return plaintext, nil
}
