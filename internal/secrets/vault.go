package secrets

import (
	"context"
	"errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// kvStore is the subset of the Vault KV v2 client Vault uses.
type kvStore interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...vault.KVOption) (*vault.KVSecret, error)
}

// Vault stores each secret as its own KV v2 entry under the handle.
type Vault struct {
	kv kvStore
}

// NewVault connects to a self-hosted HashiCorp Vault.
func NewVault(address, token, mount string) (*Vault, error) {
	if address == "" || token == "" {
		return nil, fmt.Errorf("vault url and token are required: %w", types.ErrValidation)
	}
	if mount == "" {
		mount = "secret"
	}
	cfg := vault.DefaultConfig()
	cfg.Address = address
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(token)
	return &Vault{kv: client.KVv2(mount)}, nil
}

// Read implements Resolver.
func (v *Vault) Read(ctx context.Context, handle string) (string, bool, error) {
	secret, err := v.kv.Get(ctx, handle)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading vault secret %s: %v: %w", handle, err, types.ErrSecretUnavailable)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}
	value, ok := secret.Data["value"].(string)
	return value, ok, nil
}

// Write implements Resolver.
func (v *Vault) Write(ctx context.Context, value string) (string, error) {
	if err := checkValue(value); err != nil {
		return "", err
	}
	handle, err := newHandle()
	if err != nil {
		return "", err
	}
	if _, err := v.kv.Put(ctx, handle, map[string]interface{}{"value": value}); err != nil {
		return "", fmt.Errorf("writing vault secret: %v: %w", err, types.ErrSecretUnavailable)
	}
	return handle, nil
}
