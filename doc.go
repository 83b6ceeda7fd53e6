// Package phiguard protects patient health information shared between
// patients, law firms and medical providers.
//
// It combines four pieces behind one Core:
//
//   - field-level AES-256-GCM encryption of PHI attributes
//   - content validation of uploaded files (magic bytes, embedded scripts)
//   - consent-driven authorization for third-party access
//   - an append-only access audit trail
//
// # Quick Start
//
//	cfg, err := phiguard.LoadConfigFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	core, err := phiguard.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Close()
//
//	decision, err := core.Authorize(ctx, phiguard.AccessRequest{
//	    Accessor:   phiguard.Accessor{Type: phiguard.LawFirm, ID: firmID},
//	    PatientID:  patientID,
//	    Category:   phiguard.MedicalRecords,
//	    DocumentID: documentID,
//	})
//
// A denial is not an error: Decision.Authorized is false and Decision.Reason
// says why. Errors are reserved for infrastructure failures and invalid
// input, and can be classified with IsConfigurationError, IsIntegrityError,
// IsRetryableError and IsOperationError.
//
// # Configuration
//
// Configuration is plain data. LoadConfigFromEnvironment reads the
// PHIGUARD_* variables listed in constants.go; LoadDotEnv loads a .env file
// into the environment first. The encryption key is either given directly
// (64 hex characters) or fetched at startup from HashiCorp Vault KV v2 or
// unwrapped with AWS KMS.
//
// # Testing
//
// NewTestCore builds a Core on in-memory SQLite, a temporary directory and a
// fresh key.
package phiguard
