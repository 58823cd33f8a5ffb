// Package persist reads and writes the one namespaced key that holds the
// session record ("<namespace>.session").
//
// Records are JSON. When an encryption key is configured the JSON is
// sealed with pkg/crypto/adaptive and stored as
//
//	enc:v1:<cipher-type>:<base64(nonce || ciphertext || tag)>
//
// A record that cannot be decoded, decrypted or is of an unknown version
// is reported as absent (and logged), never as a hard failure: a corrupt
// record must not lock the user out.
//
// Writes of the key hold an exclusive lock and loads a shared one, so a
// load never interleaves with a save of the same key.
package persist
