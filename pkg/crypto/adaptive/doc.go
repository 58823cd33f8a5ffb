// Package adaptive provides AEAD encryption for small records at rest.
//
// Two algorithms are supported:
//
//   - AES-256-GCM, preferred where the CPU has AES instructions
//   - ChaCha20-Poly1305, the fallback elsewhere
//
// Ciphertexts carry their random nonce as a prefix. The algorithm is not
// encoded in the ciphertext; callers that may read data written on another
// machine must record Type() next to it and reopen with NewWithType.
//
// Usage:
//
//	key, err := adaptive.ParseKey(cfg.EncryptionKey)
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
