// Package crypto seals processor credentials before they are stored.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	ErrKeySize           = errors.New("crypto: encryption key must be 32 bytes for AES-256")
	ErrCiphertextShort   = errors.New("crypto: ciphertext too short")
	ErrCiphertextCorrupt = errors.New("crypto: ciphertext failed authentication")
)

// Encryptor seals and opens secrets at rest.
type Encryptor interface {
	// Encrypt returns base64(nonce + ciphertext + tag).
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt and rejects tampered input.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncryptor implements Encryptor with AES-256-GCM and a random nonce.
type AESEncryptor struct {
	aead cipher.AEAD
}

var _ Encryptor = (*AESEncryptor)(nil)

// NewAESEncryptor creates an encryptor from a 32-byte key.
func NewAESEncryptor(key []byte) (*AESEncryptor, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &AESEncryptor{aead: aead}, nil
}

func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(raw, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode: %w", err)
	}
	raw = raw[:n]

	ns := e.aead.NonceSize()
	if len(raw) < ns+e.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	plain, err := e.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, ErrCiphertextCorrupt
	}
	return plain, nil
}

// EncryptString seals a credential for a text column.
func (e *AESEncryptor) EncryptString(s string) (string, error) {
	out, err := e.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecryptString opens a credential read from a text column.
func (e *AESEncryptor) DecryptString(s string) (string, error) {
	out, err := e.Decrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// GenerateKey returns a random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// EncodeKeyBase64 encodes a key for an environment variable.
func EncodeKeyBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKeyBase64 decodes a key read from an environment variable.
func DecodeKeyBase64(encodedKey string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: invalid key length after base64 decode: %d", len(key))
	}
	return key, nil
}
