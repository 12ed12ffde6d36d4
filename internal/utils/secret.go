package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

// Sealer protects stored backend passwords. They are forwarded on every
// backend call, so they are encrypted rather than hashed.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(stored string) (string, error)
}

// PlainSealer stores values as given.
type PlainSealer struct{}

func (PlainSealer) Seal(plain string) (string, error) { return plain, nil }

func (PlainSealer) Open(stored string) (string, error) { return stored, nil }

// SecretboxSealer encrypts with NaCl secretbox under a 32 byte key.
type SecretboxSealer struct {
	key [32]byte
}

// NewSealer builds a secretbox sealer from a 64 character hex key. An empty
// key yields a PlainSealer.
func NewSealer(hexKey string) (Sealer, error) {
	if hexKey == "" {
		return PlainSealer{}, nil
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid credential key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(raw))
	}

	s := &SecretboxSealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal returns "sb1:" + base64(nonce || box)
func (s *SecretboxSealer) Seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts sealed values. Values without the prefix predate sealing and
// are returned unchanged.
func (s *SecretboxSealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}

	box, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(box) < 24 {
		return "", errors.New("sealed value too short")
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", errors.New("failed to open sealed value")
	}
	return string(plain), nil
}
