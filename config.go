package phiguard

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hengadev/errsx"

	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/schema"
	"github.com/hengadev/phiguard/providers/storage"
)

// Config holds the configuration for creating a Core.
//
// This struct contains only data, no behavior. Configuration can be loaded from
// any source (environment variables, files, code) and passed explicitly to New.
//
// Exactly one key source is required:
//   - EncryptionKey: the key itself, 64 hex characters
//   - KeyVaultPath: a Vault KV v2 path holding the key
//   - EncryptionKeyKMSBlob: a base64 AWS KMS ciphertext of the key
//
// Every other field is optional and defaulted by Validate.
//
// Example usage:
//
//	cfg := phiguard.Config{
//	    EncryptionKey:  os.Getenv("PHIGUARD_ENCRYPTION_KEY"),
//	    DatabaseDriver: "postgres",
//	    DatabaseDSN:    "postgres://phiguard@db/phiguard",
//	    StorageType:    "s3",
//	    S3Bucket:       "phi-documents",
//	}
//
//	core, err := phiguard.New(ctx, cfg)
type Config struct {
	// EncryptionKey is the AES-256 key as 64 hex characters.
	EncryptionKey string

	// KeyVaultPath is the Vault KV v2 path the key is read from. Vault
	// connection settings come from the standard VAULT_* variables.
	KeyVaultPath string

	// EncryptionKeyKMSBlob is the key wrapped by AWS KMS, base64 encoded.
	EncryptionKeyKMSBlob string

	// KMSRegion is the region used to unwrap EncryptionKeyKMSBlob. If empty,
	// the AWS default configuration chain decides.
	KMSRegion string

	// DatabaseDriver is "sqlite" or "postgres". Default: sqlite
	DatabaseDriver string

	// DatabaseDSN is passed to the driver. Default: .phiguard/phiguard.db
	DatabaseDSN string

	// StorageType is the object store new uploads go to, "local" or "s3".
	// Default: local
	StorageType string

	// LocalStorageDir is the root of the local object store.
	// Default: .phiguard/objects
	LocalStorageDir string

	// LocalStorageBaseURL prefixes local download links. Default: /files
	LocalStorageBaseURL string

	// LocalStorageSigningKey is a hex HMAC key for local download links.
	// A random key is used when empty, so links do not survive a restart.
	LocalStorageSigningKey string

	// S3Bucket is required when StorageType is s3.
	S3Bucket string
	S3Region string

	// DownloadURLTTL is how long issued download links stay valid.
	// Default: 15m
	DownloadURLTTL time.Duration

	// PolicyFile is an optional YAML auto-approval policy. The built-in
	// policy is used when empty.
	PolicyFile string

	LogLevel  string
	LogFormat string
}

// minSigningKeyBytes is the shortest accepted local link signing key.
const minSigningKeyBytes = 16

// Validate checks that the configuration is valid and applies defaults to
// optional fields. Every problem found is reported, not just the first.
// The returned error wraps ErrInvalidConfiguration.
func (c *Config) Validate() error {
	c.applyDefaults()

	errs := make(errsx.Map)

	sources := 0
	for _, v := range []string{c.EncryptionKey, c.KeyVaultPath, c.EncryptionKeyKMSBlob} {
		if v != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		errs.Set("encryption key", fmt.Sprintf("one of %s, %s or %s is required", EnvEncryptionKey, EnvKeyVaultPath, EnvEncryptionKeyKMSBlob))
	case sources > 1:
		errs.Set("encryption key", "only one key source may be configured")
	case c.EncryptionKey != "":
		if err := crypto.ValidateKey(c.EncryptionKey); err != nil {
			errs.Set("encryption key", err)
		}
	}

	if !schema.ParseDatabaseType(c.DatabaseDriver).IsValid() {
		errs.Set("database driver", fmt.Sprintf("%q is not supported", c.DatabaseDriver))
	}

	storageType, err := storage.ParseType(c.StorageType)
	if err != nil {
		errs.Set("storage type", err)
	}
	if storageType == storage.TypeS3 && c.S3Bucket == "" {
		errs.Set("s3 bucket", "is required when storage type is s3")
	}

	if c.LocalStorageSigningKey != "" {
		key, err := hex.DecodeString(c.LocalStorageSigningKey)
		if err != nil || len(key) < minSigningKeyBytes {
			errs.Set("local storage signing key", fmt.Sprintf("must be at least %d hex encoded bytes", minSigningKeyBytes))
		}
	}

	if c.DownloadURLTTL <= 0 || c.DownloadURLTTL > MaxDownloadURLTTL {
		errs.Set("download url ttl", fmt.Sprintf("must be between 0 and %s", MaxDownloadURLTTL))
	}

	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = DefaultDatabaseDriver
	}
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = DefaultDatabaseDSN
	}
	if c.StorageType == "" {
		c.StorageType = DefaultStorageType
	}
	if c.LocalStorageDir == "" {
		c.LocalStorageDir = DefaultLocalStorageDir
	}
	if c.DownloadURLTTL == 0 {
		c.DownloadURLTTL = DefaultDownloadURLTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}
