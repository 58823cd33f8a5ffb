package adaptive

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// keyInfo binds derived keys to their use.
const keyInfo = "idbridge session record v1"

// ParseKey turns a configured secret into a 32-byte key.
//
// A 64-character hex string or a base64 string decoding to 32 bytes is
// used as-is. Anything else is treated as a passphrase and run through
// HKDF-SHA256.
func ParseKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("adaptive: empty key")
	}
	if len(secret) == 2*KeySize {
		if key, err := hex.DecodeString(secret); err == nil {
			return key, nil
		}
	}
	if key, err := base64.StdEncoding.DecodeString(secret); err == nil && len(key) == KeySize {
		return key, nil
	}
	return DeriveKey([]byte(secret), nil)
}

// DeriveKey expands secret (and optional salt) into a KeySize key.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(keyInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
