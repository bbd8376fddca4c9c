package apikeys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const secretPrefix = "sk_"

// generateSecret produces a bearer token with a recognizable prefix and
// 256 bits of entropy.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return secretPrefix + hex.EncodeToString(b), nil
}
