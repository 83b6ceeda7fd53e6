package phiguard

import (
	"context"
	"fmt"

	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/providers/keys/awskms"
	"github.com/hengadev/phiguard/providers/keys/vault"
)

// KeySource supplies the encryption key at startup. It is consulted once;
// the Core holds the key for its lifetime.
type KeySource interface {
	FetchKey(ctx context.Context) (string, error)
}

// StaticKey is a KeySource for a key already in hand.
type StaticKey string

func (k StaticKey) FetchKey(context.Context) (string, error) {
	return string(k), nil
}

// ResolveKey returns the validated key cfg names, fetching it from Vault or
// unwrapping it with KMS when configured that way.
func ResolveKey(ctx context.Context, cfg Config) (string, error) {
	if cfg.EncryptionKey != "" {
		if err := crypto.ValidateKey(cfg.EncryptionKey); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		return cfg.EncryptionKey, nil
	}
	src, err := keySourceFromConfig(ctx, cfg)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", fmt.Errorf("%w: no key source configured", ErrInvalidConfiguration)
	}
	return fetchKey(ctx, src)
}

// keySourceFromConfig returns the remote source named by cfg, or nil when
// the key is given directly.
func keySourceFromConfig(ctx context.Context, cfg Config) (KeySource, error) {
	switch {
	case cfg.KeyVaultPath != "":
		src, err := vault.New(cfg.KeyVaultPath)
		if err != nil {
			return nil, err
		}
		return src, nil
	case cfg.EncryptionKeyKMSBlob != "":
		src, err := awskms.New(ctx, awskms.Config{Region: cfg.KMSRegion}, cfg.EncryptionKeyKMSBlob)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, nil
	}
}

// fetchKey reads and validates a key from src.
func fetchKey(ctx context.Context, src KeySource) (string, error) {
	key, err := src.FetchKey(ctx)
	if err != nil {
		return "", err
	}
	if err := crypto.ValidateKey(key); err != nil {
		return "", fmt.Errorf("%w: key from key source: %w", ErrInvalidConfiguration, err)
	}
	return key, nil
}
