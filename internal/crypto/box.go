package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/phierr"
)

const (
	// IVSize is the GCM nonce length used for every field. 16 bytes rather
	// than the usual 12 so the wire format stays compatible with existing rows.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16

	fieldSeparator = ":"
	fieldParts     = 3
)

// Box performs authenticated field-level encryption with a single
// process-wide AES-256 key. A Box is safe for concurrent use.
type Box struct {
	aead   cipher.AEAD
	random io.Reader
	logger *slog.Logger
}

// BoxOption configures a Box.
type BoxOption func(*Box)

// WithLogger sets the logger used to report integrity failures.
func WithLogger(logger *slog.Logger) BoxOption {
	return func(b *Box) {
		b.logger = logger
	}
}

// WithRandom replaces the source of IVs and tokens. Only tests should need it.
func WithRandom(r io.Reader) BoxOption {
	return func(b *Box) {
		b.random = r
	}
}

// NewBox validates hexKey and builds a Box around it. An invalid key is a
// configuration error: callers are expected to refuse to start.
func NewBox(hexKey string, opts ...BoxOption) (*Box, error) {
	if err := ValidateKey(hexKey); err != nil {
		return nil, err
	}
	key, _ := hex.DecodeString(hexKey)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	b := &Box{
		aead:   aead,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = monitoring.OrDiscard(b.logger)
	return b, nil
}

// Encrypt seals plaintext under a fresh random IV and returns the
// iv_hex:authTag_hex:ciphertext_hex form. Empty input means an absent field
// and yields nil.
func (b *Box) Encrypt(plaintext string) (*string, error) {
	if plaintext == "" {
		return nil, nil
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(b.random, iv); err != nil {
		return nil, phierr.NewOperationFailedError(phierr.Encrypt, fmt.Errorf("failed to generate IV: %w", err))
	}

	sealed := b.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	field := strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, fieldSeparator)
	return &field, nil
}

// Decrypt opens a value produced by Encrypt. Empty input yields nil.
//
// A malformed value fails with phierr.ErrInvalidFormat. A tag that does not
// verify fails with phierr.ErrIntegrityFailure and is logged at CRITICAL.
func (b *Box) Decrypt(field string) (*string, error) {
	if field == "" {
		return nil, nil
	}

	iv, tag, ciphertext, err := parseField(field)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := b.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		monitoring.LogSecurityEvent(context.Background(), b.logger, "field_integrity_failure", "critical",
			"reason", "GCM authentication tag did not verify (tampering, corruption or key mismatch)",
			"iv", hex.EncodeToString(iv),
		)
		return nil, phierr.NewIntegrityError(err)
	}

	value := string(plaintext)
	return &value, nil
}

func parseField(field string) (iv, tag, ciphertext []byte, err error) {
	parts := strings.Split(field, fieldSeparator)
	if len(parts) != fieldParts {
		return nil, nil, nil, phierr.NewInvalidFormatError("iv:authTag:ciphertext", phierr.Decrypt,
			fmt.Sprintf("expected %d parts, got %d", fieldParts, len(parts)))
	}

	iv, err = hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return nil, nil, nil, phierr.NewInvalidFormatError("iv:authTag:ciphertext", phierr.Decrypt, "iv must be 32 hex characters")
	}
	tag, err = hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return nil, nil, nil, phierr.NewInvalidFormatError("iv:authTag:ciphertext", phierr.Decrypt, "auth tag must be 32 hex characters")
	}
	ciphertext, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, phierr.NewInvalidFormatError("iv:authTag:ciphertext", phierr.Decrypt, "ciphertext is not hex encoded")
	}
	return iv, tag, ciphertext, nil
}

// IsEncryptedField reports whether value has the shape of an encrypted field.
// It does not verify the tag.
func IsEncryptedField(value string) bool {
	_, _, _, err := parseField(value)
	return err == nil
}
