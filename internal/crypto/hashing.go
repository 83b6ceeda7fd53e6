package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// DefaultTokenLength is the byte length used when a token length is not given.
const DefaultTokenLength = 32

// Hash returns the SHA-256 hex digest of the lower-cased input, used as a
// lookup index for encrypted columns. Empty input yields "".
func Hash(data string) string {
	if data == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(data)))
	return hex.EncodeToString(sum[:])
}

// Hash is the method form of the package-level Hash.
func (b *Box) Hash(data string) string {
	return Hash(data)
}

// HashBytes returns the SHA-256 hex digest of raw bytes, with no case folding.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateSecureToken returns lengthBytes random bytes, hex encoded.
// A non-positive length falls back to DefaultTokenLength.
func (b *Box) GenerateSecureToken(lengthBytes int) (string, error) {
	return generateToken(b.random, lengthBytes)
}

func generateToken(r io.Reader, lengthBytes int) (string, error) {
	if lengthBytes <= 0 {
		lengthBytes = DefaultTokenLength
	}
	token := make([]byte, lengthBytes)
	if _, err := io.ReadFull(r, token); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(token), nil
}
