package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Key joins key parts with ":" after a namespace, e.g.
// Key("dist-tags", "https://registry.npmjs.org/", "react").
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}
