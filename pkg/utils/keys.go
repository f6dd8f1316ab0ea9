package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateAPIKey returns 32 random bytes, hex encoded.
func GenerateAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
