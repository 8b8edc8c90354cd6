package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// VaultConfig configures the HashiCorp Vault provider
type VaultConfig struct {
	Address   string
	Namespace string

	// token or approle
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	MountPath string // KV mount, default "secret"
	KVVersion string // "v1" or "v2" (default)
}

type vaultManager struct {
	client *vault.Client
	cfg    VaultConfig
	logger *zap.Logger
}

// NewVaultManager creates a SecretManager backed by a Vault KV engine
func NewVaultManager(ctx context.Context, cfg VaultConfig, logger *zap.Logger) (ports.SecretManager, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.KVVersion == "" {
		cfg.KVVersion = "v2"
	}
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = "token"
	}

	vcfg := vault.DefaultConfig()
	vcfg.Address = cfg.Address

	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return nil, errors.New("vault token is required for token auth")
		}
		client.SetToken(cfg.Token)
	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return nil, errors.New("vault role_id and secret_id are required for approle auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return nil, fmt.Errorf("vault approle login: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return nil, errors.New("vault approle login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
	default:
		return nil, fmt.Errorf("unsupported vault auth method %q", cfg.AuthMethod)
	}

	logger.Info("vault secret manager initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("kv_version", cfg.KVVersion))

	return &vaultManager{client: client, cfg: cfg, logger: logger}, nil
}

// GetSecret reads path from the KV engine. The secret value is the "value"
// field, or the only string field when there is exactly one.
func (m *vaultManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	path = strings.TrimPrefix(path, "/")
	full := m.cfg.MountPath + "/" + path
	if m.cfg.KVVersion == "v2" {
		full = m.cfg.MountPath + "/data/" + path
	}

	resp, err := m.client.Logical().ReadWithContext(ctx, full)
	if err != nil {
		m.logger.Error("vault read failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("read vault secret %s: %w", path, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	data := resp.Data
	secret := &ports.Secret{Version: "1", Metadata: map[string]string{}}
	if m.cfg.KVVersion == "v2" {
		inner, ok := resp.Data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("secret %s: unexpected kv v2 response", path)
		}
		data = inner
		if meta, ok := resp.Data["metadata"].(map[string]interface{}); ok {
			if v, ok := meta["version"].(json.Number); ok {
				secret.Version = v.String()
			}
			if ct, ok := meta["created_time"].(string); ok {
				secret.CreatedAt = ct
			}
		}
	}

	var others []string
	for k, v := range data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == "value" {
			secret.Value = s
			continue
		}
		secret.Metadata[k] = s
		others = append(others, s)
	}
	if secret.Value == "" && len(others) == 1 {
		secret.Value = others[0]
	}
	if secret.Value == "" {
		return nil, fmt.Errorf("secret %s has no value field", path)
	}
	return secret, nil
}
