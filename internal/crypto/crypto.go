package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the length of both the AES-256 key and the HMAC-SHA256 key.
const KeySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher seals text with AES-256-GCM and derives blind indexes with HMAC-SHA256.
// A Cipher is safe for concurrent use.
type Cipher struct {
	aead     cipher.AEAD
	indexKey []byte
}

// New builds a Cipher from a 32 byte sealing key and a separate 32 byte index key.
func New(sealKey, indexKey []byte) (*Cipher, error) {
	if len(sealKey) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes", KeySize)
	}
	if len(indexKey) != KeySize {
		return nil, fmt.Errorf("blind index key must be %d bytes", KeySize)
	}
	block, err := aes.NewCipher(sealKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead, indexKey: append([]byte(nil), indexKey...)}, nil
}

// DecodeKey decodes a standard base64 key and checks its length.
func DecodeKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("key must decode to %d bytes, got %d", KeySize, len(b))
	}
	return b, nil
}

// Seal returns base64(nonce || ciphertext). Empty input stays empty.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (c *Cipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return "", ErrCiphertextTooShort
	}
	plaintext, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// BlindIndex is a deterministic keyed hash, used to look up secrets (refresh and
// reset tokens) without storing them.
func (c *Cipher) BlindIndex(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	h := hmac.New(sha256.New, c.indexKey)
	h.Write([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
