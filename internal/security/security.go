// Package security manages the app lock: a hashed PIN kept in the secret
// namespace and the biometric unlock flag.
package security

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// PIN length bounds.
const (
	MinPinLength = 4
	MaxPinLength = 6
)

// ErrInvalidPin is returned for PINs that are not 4 to 6 digits.
var ErrInvalidPin = fmt.Errorf("%w: PIN must be %d to %d digits", common.ErrValidation, MinPinLength, MaxPinLength)

// Service reads and writes security settings in a key-value store.
type Service struct {
	kv   service.KeyValueStore
	cost int
}

// New returns a Service backed by kv.
func New(kv service.KeyValueStore) *Service {
	return &Service{kv: kv, cost: bcrypt.DefaultCost}
}

// SetPin hashes pin into the secret namespace and raises the plain PIN flag.
func (s *Service) SetPin(ctx context.Context, pin string) error {
	if err := validatePin(pin); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}

	if err := s.kv.SetSecret(ctx, localstore.SecretUserPin, string(hash)); err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	return s.kv.Set(ctx, localstore.KeyPin, true)
}

// VerifyPin reports whether pin matches the stored PIN. It is false when no
// PIN is set.
func (s *Service) VerifyPin(ctx context.Context, pin string) (bool, error) {
	var hash string
	ok, err := s.kv.GetSecret(ctx, localstore.SecretUserPin, &hash)
	if err != nil || !ok {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify PIN: %w", err)
	}
	return true, nil
}

// IsPinSet reports whether a PIN hash is stored.
func (s *Service) IsPinSet(ctx context.Context) (bool, error) {
	var hash string
	return s.kv.GetSecret(ctx, localstore.SecretUserPin, &hash)
}

// RemovePin deletes the PIN and its flag.
func (s *Service) RemovePin(ctx context.Context) error {
	if err := s.kv.DeleteSecret(ctx, localstore.SecretUserPin); err != nil {
		return fmt.Errorf("failed to remove PIN: %w", err)
	}
	return s.kv.Delete(ctx, localstore.KeyPin)
}

// EnableBiometric turns biometric unlock on.
func (s *Service) EnableBiometric(ctx context.Context) error {
	return s.kv.Set(ctx, localstore.KeyBiometricEnabled, true)
}

// DisableBiometric turns biometric unlock off.
func (s *Service) DisableBiometric(ctx context.Context) error {
	return s.kv.Set(ctx, localstore.KeyBiometricEnabled, false)
}

// IsBiometricEnabled reports the biometric flag, false when never set.
func (s *Service) IsBiometricEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	if _, err := s.kv.Get(ctx, localstore.KeyBiometricEnabled, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func validatePin(pin string) error {
	if len(pin) < MinPinLength || len(pin) > MaxPinLength {
		return ErrInvalidPin
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPin
		}
	}
	return nil
}
