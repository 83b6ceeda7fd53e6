package phiguard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// LoadConfigFromEnvironment loads configuration from PHIGUARD_* environment
// variables and returns a validated Config.
//
// One key variable is required:
//   - PHIGUARD_ENCRYPTION_KEY, PHIGUARD_KEY_VAULT_PATH or
//     PHIGUARD_ENCRYPTION_KEY_KMS_BLOB
//
// Everything else is optional and defaulted.
//
// Example usage (12-factor app):
//
//	// export PHIGUARD_ENCRYPTION_KEY="$(phiguard genkey)"
//	// export PHIGUARD_DATABASE_DRIVER="postgres"
//	// export PHIGUARD_DATABASE_DSN="postgres://phiguard@db/phiguard"
//
//	cfg, err := phiguard.LoadConfigFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnvironment() (Config, error) {
	cfg := Config{
		EncryptionKey:          os.Getenv(EnvEncryptionKey),
		KeyVaultPath:           os.Getenv(EnvKeyVaultPath),
		EncryptionKeyKMSBlob:   os.Getenv(EnvEncryptionKeyKMSBlob),
		KMSRegion:              os.Getenv(EnvKMSRegion),
		DatabaseDriver:         getEnvOrDefault(EnvDatabaseDriver, DefaultDatabaseDriver),
		DatabaseDSN:            getEnvOrDefault(EnvDatabaseDSN, DefaultDatabaseDSN),
		StorageType:            getEnvOrDefault(EnvStorageType, DefaultStorageType),
		LocalStorageDir:        getEnvOrDefault(EnvLocalStorageDir, DefaultLocalStorageDir),
		LocalStorageBaseURL:    os.Getenv(EnvLocalStorageBaseURL),
		LocalStorageSigningKey: os.Getenv(EnvLocalStorageSigningKey),
		S3Bucket:               os.Getenv(EnvS3Bucket),
		S3Region:               os.Getenv(EnvS3Region),
		PolicyFile:             os.Getenv(EnvPolicyFile),
		LogLevel:               getEnvOrDefault(EnvLogLevel, DefaultLogLevel),
		LogFormat:              getEnvOrDefault(EnvLogFormat, DefaultLogFormat),
	}

	if raw := os.Getenv(EnvDownloadURLTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, EnvDownloadURLTTL, err)
		}
		cfg.DownloadURLTTL = ttl
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads environment files into the process environment without
// overriding variables that are already set. With no paths it loads ./.env
// when that file exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("%w: load env file: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

// getEnvOrDefault returns the value of an environment variable, or a default
// value if it is unset or empty.
func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
