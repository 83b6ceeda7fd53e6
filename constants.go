package phiguard

import "time"

// Environment variable names
const (
	// EnvEncryptionKey holds the 64 hex character AES-256 key.
	EnvEncryptionKey = "PHIGUARD_ENCRYPTION_KEY"

	// EnvKeyVaultPath is a Vault KV v2 path the key is read from instead,
	// e.g. "secret/data/phiguard/encryption".
	EnvKeyVaultPath = "PHIGUARD_KEY_VAULT_PATH"

	// EnvEncryptionKeyKMSBlob is a base64 AWS KMS ciphertext that unwraps to
	// the hex key.
	EnvEncryptionKeyKMSBlob = "PHIGUARD_ENCRYPTION_KEY_KMS_BLOB"

	// EnvKMSRegion is the AWS region used to unwrap the KMS blob.
	EnvKMSRegion = "PHIGUARD_KMS_REGION"

	// EnvDatabaseDriver selects "sqlite" or "postgres".
	EnvDatabaseDriver = "PHIGUARD_DATABASE_DRIVER"

	// EnvDatabaseDSN is the driver specific data source name.
	EnvDatabaseDSN = "PHIGUARD_DATABASE_DSN"

	// EnvStorageType selects the object store new uploads go to: "local" or "s3".
	EnvStorageType = "PHIGUARD_STORAGE_TYPE"

	EnvLocalStorageDir        = "PHIGUARD_LOCAL_STORAGE_DIR"
	EnvLocalStorageBaseURL    = "PHIGUARD_LOCAL_STORAGE_BASE_URL"
	EnvLocalStorageSigningKey = "PHIGUARD_LOCAL_STORAGE_SIGNING_KEY"

	EnvS3Bucket = "PHIGUARD_S3_BUCKET"
	EnvS3Region = "PHIGUARD_S3_REGION"

	// EnvDownloadURLTTL is a Go duration such as "15m".
	EnvDownloadURLTTL = "PHIGUARD_DOWNLOAD_URL_TTL"

	// EnvPolicyFile points to a YAML auto-approval policy.
	EnvPolicyFile = "PHIGUARD_POLICY_FILE"

	EnvLogLevel  = "PHIGUARD_LOG_LEVEL"
	EnvLogFormat = "PHIGUARD_LOG_FORMAT"
)

// Default values
const (
	DefaultDatabaseDriver  = "sqlite"
	DefaultDatabaseDSN     = ".phiguard/phiguard.db"
	DefaultStorageType     = "local"
	DefaultLocalStorageDir = ".phiguard/objects"
	DefaultDownloadURLTTL  = 15 * time.Minute
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// MaxDownloadURLTTL bounds how long a download link may stay valid.
const MaxDownloadURLTTL = 7 * 24 * time.Hour
