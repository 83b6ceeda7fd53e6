package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/hengadev/phiguard/internal/phierr"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// KeyHexLength is the length of a hex-encoded key.
	KeyHexLength = KeySize * 2
)

// ValidateKey checks that hexKey is exactly 64 hexadecimal characters.
func ValidateKey(hexKey string) error {
	if hexKey == "" {
		return phierr.NewInvalidKeyError("encryption key is not set")
	}
	if len(hexKey) != KeyHexLength {
		return phierr.NewInvalidKeyError(fmt.Sprintf("expected %d hex characters, got %d", KeyHexLength, len(hexKey)))
	}
	if _, err := hex.DecodeString(hexKey); err != nil {
		return phierr.NewInvalidKeyError("key contains non-hex characters")
	}
	return nil
}

// GenerateKey returns a new random key in the hex form accepted by NewBox.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
