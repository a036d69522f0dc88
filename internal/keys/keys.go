// Package keys holds key derivation helpers shared by the façade and the
// filesystem backend.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
)

// Join prepends the manager prefix to a logical key. An empty prefix leaves
// the key untouched.
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + key
}

// FileName derives a deterministic, filesystem-safe name for a namespaced
// key: the first 16 bytes of its SHA-256, hex encoded.
func FileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
