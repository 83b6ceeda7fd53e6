// Package vault loads the field encryption key from a HashiCorp Vault KV v2
// secret.
package vault

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/phierr"
)

// DefaultField is the secret field holding the hex key.
const DefaultField = "key"

// logical is the subset of the Vault logical API used here (allows mocking)
type logical interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error)
}

// KeySource reads and writes the key at one KV v2 path.
type KeySource struct {
	logical logical
	path    string
	field   string
}

// New connects to Vault using environment variables (see newClient) and
// targets path, e.g. "secret/data/phiguard/encryption-key". The "/data/"
// segment is required for KV v2.
func New(path string) (*KeySource, error) {
	if path == "" {
		return nil, phierr.NewInvalidArgumentError("vault path", "is required")
	}
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return newKeySource(client.Logical(), path, DefaultField), nil
}

func newKeySource(l logical, path, field string) *KeySource {
	return &KeySource{logical: l, path: path, field: field}
}

// FetchKey returns the validated hex key.
func (k *KeySource) FetchKey(ctx context.Context) (string, error) {
	secret, err := k.logical.ReadWithContext(ctx, k.path)
	if err != nil {
		return "", phierr.NewKeySourceError("vault", fmt.Errorf("failed to read %s: %w", k.path, err))
	}
	if secret == nil || secret.Data == nil {
		return "", phierr.NewKeySourceError("vault", fmt.Errorf("no secret at %s", k.path))
	}

	// KV v2 wraps the actual data in a "data" key
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", phierr.NewKeySourceError("vault", fmt.Errorf("invalid KV v2 secret format at %s", k.path))
	}
	key, ok := data[k.field].(string)
	if !ok {
		return "", phierr.NewKeySourceError("vault", fmt.Errorf("field %q missing at %s", k.field, k.path))
	}

	key = strings.TrimSpace(key)
	if err := crypto.ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// StoreKey writes a new key version. KV v2 keeps the previous versions.
func (k *KeySource) StoreKey(ctx context.Context, key string) error {
	if err := crypto.ValidateKey(key); err != nil {
		return err
	}
	data := map[string]interface{}{
		"data": map[string]interface{}{
			k.field: key,
		},
	}
	if _, err := k.logical.WriteWithContext(ctx, k.path, data); err != nil {
		return phierr.NewKeySourceError("vault", fmt.Errorf("failed to write %s: %w", k.path, err))
	}
	return nil
}

// newClient creates a configured Vault client using environment variables.
//
// Environment Variables:
//   - VAULT_ADDR: Vault server address (required, e.g., "https://vault.example.com")
//   - VAULT_NAMESPACE: Vault namespace for HCP Vault (optional)
//   - VAULT_TOKEN: Direct Vault token (optional, alternative to AppRole)
//   - VAULT_ROLE_ID / VAULT_SECRET_ID: AppRole credentials (optional)
//
// A token wins over AppRole; with neither, newClient fails.
func newClient() (*api.Client, error) {
	config := api.DefaultConfig()
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		config.Address = addr
	}
	if config.Address == "" {
		return nil, phierr.NewInvalidArgumentError("VAULT_ADDR", "is required")
	}
	config.HttpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, phierr.NewKeySourceError("vault", fmt.Errorf("failed to create client: %w", err))
	}
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		client.SetNamespace(namespace)
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
		return client, nil
	}

	roleID, secretID := os.Getenv("VAULT_ROLE_ID"), os.Getenv("VAULT_SECRET_ID")
	if roleID != "" && secretID != "" {
		resp, err := client.Logical().Write("auth/approle/login", map[string]interface{}{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, phierr.NewKeySourceError("vault", fmt.Errorf("AppRole login failed: %w", err))
		}
		if resp == nil || resp.Auth == nil {
			return nil, phierr.NewKeySourceError("vault", fmt.Errorf("no auth info returned from AppRole login"))
		}
		client.SetToken(resp.Auth.ClientToken)
		return client, nil
	}

	return nil, phierr.NewInvalidArgumentError("vault auth", "set VAULT_TOKEN or VAULT_ROLE_ID+VAULT_SECRET_ID")
}
