// Package secrets resolves service credentials from the configured secret
// store: environment, mounted files, AWS Secrets Manager, Vault or GCP.
package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// Provider names
const (
	ProviderEnv   = "env"
	ProviderFile  = "file"
	ProviderAWS   = "aws"
	ProviderVault = "vault"
	ProviderGCP   = "gcp"
)

// Config selects and configures a provider
type Config struct {
	Provider     string
	FileRoot     string
	GCPProjectID string
	AWS          AWSConfig
	Vault        VaultConfig
	CacheTTL     time.Duration
}

// New builds the configured SecretManager. The close func is never nil.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretManager, func() error, error) {
	noop := func() error { return nil }

	var (
		sm  ports.SecretManager
		err error
	)
	closer := noop
	switch cfg.Provider {
	case "", ProviderEnv:
		sm = NewEnvManager()
	case ProviderFile:
		sm = NewFileManager(cfg.FileRoot, logger)
	case ProviderAWS:
		sm, err = NewAWSManager(ctx, cfg.AWS, logger)
	case ProviderVault:
		sm, err = NewVaultManager(ctx, cfg.Vault, logger)
	case ProviderGCP:
		sm, closer, err = NewGCPManager(ctx, cfg.GCPProjectID, logger)
	default:
		return nil, noop, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, noop, err
	}

	return WithCache(sm, cfg.CacheTTL), closer, nil
}

// Resolve reads each path and returns the values keyed like the input.
// Empty paths are skipped.
func Resolve(ctx context.Context, sm ports.SecretManager, paths map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for key, path := range paths {
		if path == "" {
			continue
		}
		secret, err := sm.GetSecret(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", key, err)
		}
		out[key] = secret.Value
	}
	return out, nil
}
