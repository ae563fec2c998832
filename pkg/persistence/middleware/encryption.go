package middleware

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// NewEncryptionHooks encrypts payloads with AES-256-GCM. The stored form is
// base64 text so the datafile stays printable.
func NewEncryptionHooks(config EncryptionConfig) (Hooks, error) {
	if len(config.ActiveKey) != 32 {
		return Hooks{}, errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return Hooks{}, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}

	return Hooks{
		After: func(plainText []byte) ([]byte, error) {
			ciphertext, err := encrypt(plainText, config.ActiveKey)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt payload: %w", err)
			}
			out := make([]byte, base64.StdEncoding.EncodedLen(len(ciphertext)))
			base64.StdEncoding.Encode(out, ciphertext)
			return out, nil
		},
		Before: func(data []byte) ([]byte, error) {
			ciphertext := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
			n, err := base64.StdEncoding.Decode(ciphertext, data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
			}
			plainText, err := decryptWithRotation(ciphertext[:n], config.ActiveKey, config.FallbackKeys)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt payload: %w", err)
			}
			return plainText, nil
		},
	}, nil
}

// DecodeKey parses a base64 encoded key as found in configuration files.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return key, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
