// Package secrets implements the secret provider on HashiCorp Vault.
// Secrets are fetched per call through one shared Vault client; lookups are
// idempotent and side-effect-free, so the client is safe to share across
// concurrent sync tasks.
package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// Provider resolves named secrets from the vault.
type Provider interface {
	// GetSecret returns the value stored under name, or an authentication
	// error when the secret is missing.
	GetSecret(ctx context.Context, name string) (string, error)
}

// VaultProvider is a Vault KVv2-backed implementation of Provider.
type VaultProvider struct {
	client    *vault.Client
	mountPath string
	logger    logger.Logger
}

// NewVaultClient builds the shared Vault API client from configuration.
func NewVaultClient(cfg *config.VaultConfig) (*vault.Client, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, errors.ErrConfiguration("failed to create vault client").WithCause(err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return client, nil
}

// NewVaultProvider creates a new VaultProvider.
func NewVaultProvider(cfg config.VaultConfig, client *vault.Client, log logger.Logger) *VaultProvider {
	return &VaultProvider{
		client:    client,
		mountPath: cfg.MountPath,
		logger:    log.WithComponent("VaultProvider"),
	}
}

// GetSecret reads the secret stored under possync/tenants/<name>.
// A missing secret is an authentication failure for the owning tenant's sync.
func (p *VaultProvider) GetSecret(ctx context.Context, name string) (string, error) {
	secret, err := p.client.KVv2(p.mountPath).Get(ctx, fmt.Sprintf("possync/tenants/%s", name))
	if err != nil {
		p.logger.Error(ctx, "failed to read secret from vault", err, logger.String("secret_name", name))
		return "", errors.ErrAuthentication(fmt.Sprintf("secret %q not readable", name)).WithCause(err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.ErrAuthentication(fmt.Sprintf("secret %q not found in vault", name))
	}

	value, ok := secret.Data["value"].(string)
	if !ok || value == "" {
		return "", errors.ErrAuthentication(fmt.Sprintf("secret %q has no value field", name))
	}
	return value, nil
}

var _ Provider = (*VaultProvider)(nil)
