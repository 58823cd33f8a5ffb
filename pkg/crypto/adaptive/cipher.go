package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// KeySize is the required key length for both algorithms.
const KeySize = 32

var (
	ErrKeySize           = errors.New("adaptive: key must be 32 bytes")
	ErrCiphertextShort   = errors.New("adaptive: ciphertext too short")
	ErrUnknownCipherType = errors.New("adaptive: unknown cipher type")
)

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt seals plaintext. The result is nonce || ciphertext || tag.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt opens a value produced by Encrypt.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// New creates a cipher, picking the algorithm for the current platform.
func New(key []byte) (Cipher, error) {
	return NewWithType(key, Preferred())
}

// Preferred returns the algorithm New would pick on this platform.
func Preferred() CipherType {
	// Go's crypto/aes uses AES-NI on amd64 and the ARMv8 crypto
	// extensions on arm64.
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// NewWithType creates a cipher of the given type.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch t {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipherType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: init %s: %w", t, err)
	}
	return &aeadCipher{typ: t, aead: aead}, nil
}

type aeadCipher struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aeadCipher) Type() CipherType { return c.typ }

func (c *aeadCipher) NonceSize() int { return c.aead.NonceSize() }

func (c *aeadCipher) Overhead() int { return c.aead.Overhead() }

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(ciphertext) < ns+c.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	return c.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], additionalData)
}
