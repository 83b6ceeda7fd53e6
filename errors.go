package phiguard

import (
	"errors"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/providers/storage"
)

var (
	// High-level service errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrDatabaseUnavailable  = phierr.ErrDatabaseUnavailable
	ErrStorageUnavailable   = phierr.ErrStorageUnavailable
	ErrKeySourceUnavailable = phierr.ErrKeySourceUnavailable

	// Crypto errors
	ErrInvalidKey       = phierr.ErrInvalidKey
	ErrEncryptionFailed = phierr.ErrEncryptionFailed
	ErrDecryptionFailed = phierr.ErrDecryptionFailed
	ErrInvalidFormat    = phierr.ErrInvalidFormat
	ErrIntegrityFailure = phierr.ErrIntegrityFailure

	// Request errors
	ErrNotFound            = phierr.ErrNotFound
	ErrInvalidArgument     = phierr.ErrInvalidArgument
	ErrInvalidDownloadLink = storage.ErrInvalidSignature
)

// IsRetryableError returns true if the error represents a transient failure that might succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrDatabaseUnavailable) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrKeySourceUnavailable)
}

// IsConfigurationError returns true if the error represents a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidKey)
}

// IsIntegrityError returns true if stored ciphertext failed authentication.
// Such data may have been tampered with and must not be shown.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrityFailure)
}

// IsOperationError returns true if the error represents a failure during encryption/decryption operations.
func IsOperationError(err error) bool {
	return errors.Is(err, ErrEncryptionFailed) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrIntegrityFailure)
}

// IsValidationError returns true if the caller supplied an invalid request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound)
}
