package util

import (
	"crypto/sha256"
	"fmt"
)

// maxReadableName bounds names kept verbatim in storage keys.
const maxReadableName = 128

// StorageKey returns the provider key for a replica: "replica:<ns>:<name>".
// Overlong names are replaced by a short hash so every backend accepts the key.
func StorageKey(namespace, name string) string {
	if len(name) > maxReadableName {
		sum := sha256.Sum256([]byte(name))
		name = fmt.Sprintf("h%x", sum[:8])
	}
	if namespace == "" {
		return "replica:" + name
	}
	return "replica:" + namespace + ":" + name
}
