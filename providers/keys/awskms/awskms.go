// Package awskms unwraps the field encryption key from a ciphertext blob
// produced by AWS KMS, so the key never sits in configuration in the clear.
package awskms

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/phierr"
)

// kmsClient interface for AWS KMS operations (allows mocking)
type kmsClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Config holds configuration for the KMS key source.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config
}

// KeySource decrypts a base64 KMS ciphertext blob into the hex key.
type KeySource struct {
	client kmsClient
	blob   string
}

// New creates a key source for blob, the base64 output of Wrap.
func New(ctx context.Context, cfg Config, blob string) (*KeySource, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &KeySource{client: client, blob: blob}, nil
}

func newClient(ctx context.Context, cfg Config) (*kms.Client, error) {
	if cfg.AWSConfig != nil {
		return kms.NewFromConfig(*cfg.AWSConfig), nil
	}
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, phierr.NewKeySourceError("aws kms", fmt.Errorf("failed to load AWS config: %w", err))
	}
	return kms.NewFromConfig(awsConfig), nil
}

// FetchKey decrypts the blob and validates the result.
func (k *KeySource) FetchKey(ctx context.Context) (string, error) {
	blob := strings.TrimSpace(k.blob)
	if blob == "" {
		return "", phierr.NewInvalidKeyError("KMS ciphertext blob is not set")
	}
	decoded, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", phierr.NewInvalidKeyError("KMS ciphertext blob is not valid base64")
	}

	// KMS finds the key from the ciphertext metadata.
	result, err := k.client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: decoded})
	if err != nil {
		return "", phierr.NewKeySourceError("aws kms", fmt.Errorf("failed to decrypt key blob: %w", err))
	}
	if result.Plaintext == nil {
		return "", phierr.NewKeySourceError("aws kms", fmt.Errorf("no plaintext returned from KMS"))
	}

	key := strings.TrimSpace(string(result.Plaintext))
	if err := crypto.ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Wrapper encrypts keys under a KMS key for storage in configuration.
type Wrapper struct {
	client kmsClient
}

// NewWrapper creates a Wrapper.
func NewWrapper(ctx context.Context, cfg Config) (*Wrapper, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Wrapper{client: client}, nil
}

// Wrap encrypts hexKey under keyID and returns the base64 ciphertext blob.
//
// The keyID can be a key ID, key ARN, alias name ("alias/my-key") or alias ARN.
func (w *Wrapper) Wrap(ctx context.Context, keyID, hexKey string) (string, error) {
	if keyID == "" {
		return "", phierr.NewInvalidArgumentError("kms key id", "is required")
	}
	if err := crypto.ValidateKey(hexKey); err != nil {
		return "", err
	}

	result, err := w.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(keyID),
		Plaintext: []byte(hexKey),
	})
	if err != nil {
		return "", phierr.NewKeySourceError("aws kms", fmt.Errorf("failed to encrypt key with %s: %w", keyID, err))
	}
	if result.CiphertextBlob == nil {
		return "", phierr.NewKeySourceError("aws kms", fmt.Errorf("no ciphertext returned from KMS"))
	}
	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}
