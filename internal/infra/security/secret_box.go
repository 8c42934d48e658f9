package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SealedPrefix marks a config value that must be opened before use.
const SealedPrefix = "enc:"

// KeyEnv names the environment variable holding the box key.
const KeyEnv = "PRODUCT_CONTENT_SECRET_KEY"

var ErrNoKey = errors.New("sealed value found but " + KeyEnv + " is not set")

// SecretBox seals config secrets (provider API keys, bot tokens) with AES-GCM.
// Sealed form: "enc:" + base64(nonce || ciphertext).
type SecretBox struct {
	gcm cipher.AEAD
}

// NewSecretBox accepts a 16, 24 or 32 byte key.
func NewSecretBox(key string) (*SecretBox, error) {
	k := []byte(key)
	switch len(k) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("secret key must be 16, 24, or 32 bytes; got %d", len(k))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &SecretBox{gcm: gcm}, nil
}

func (b *SecretBox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := b.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open returns v unchanged unless it carries SealedPrefix.
func (b *SecretBox) Open(v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := b.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := b.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

func IsSealed(v string) bool { return strings.HasPrefix(v, SealedPrefix) }

// OpenAll opens every sealed value in place. The box is only built when
// something is sealed, so configs without secrets never need a key.
func OpenAll(key string, fields ...*string) error {
	var box *SecretBox
	for _, f := range fields {
		if f == nil || !IsSealed(*f) {
			continue
		}
		if box == nil {
			if key == "" {
				return ErrNoKey
			}
			var err error
			if box, err = NewSecretBox(key); err != nil {
				return err
			}
		}
		v, err := box.Open(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
