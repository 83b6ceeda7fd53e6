package phierr

import (
	"errors"
	"fmt"
)

var (
	// Key errors
	ErrInvalidKey = errors.New("invalid encryption key")

	// Operation errors
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid format")

	// ErrIntegrityFailure means the GCM tag did not verify: the ciphertext was
	// tampered with, corrupted, or sealed under another key.
	ErrIntegrityFailure = errors.New("integrity failure: possible tampering")

	// Store errors
	ErrDatabaseUnavailable = errors.New("database unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")

	// Collaborator errors
	ErrStorageUnavailable   = errors.New("object storage unavailable")
	ErrKeySourceUnavailable = errors.New("key source unavailable")
)

func NewInvalidKeyError(details string) error {
	return fmt.Errorf("%w: %s", ErrInvalidKey, details)
}

func NewInvalidFormatError(formatName string, action Action, details string) error {
	return fmt.Errorf("%w: value has invalid format for %s operation, expected %s format: %s",
		ErrInvalidFormat, action, formatName, details)
}

func NewOperationFailedError(action Action, err error) error {
	sentinel := ErrEncryptionFailed
	if action == Decrypt {
		sentinel = ErrDecryptionFailed
	}
	return fmt.Errorf("%w: %s operation failed: %w", sentinel, action, err)
}

func NewIntegrityError(err error) error {
	return fmt.Errorf("%w: %w", ErrIntegrityFailure, err)
}

func NewInvalidArgumentError(name string, details string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, name, details)
}

// NewDatabaseError tags a store failure so callers can treat it as retryable
// infrastructure trouble rather than a decision.
func NewDatabaseError(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDatabaseUnavailable, operation, err)
}

func NewStorageError(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, operation, err)
}

func NewKeySourceError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrKeySourceUnavailable, source, err)
}
