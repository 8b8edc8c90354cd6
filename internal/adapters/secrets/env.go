package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// envManager reads each secret from the environment variable named by path.
// This is the default for local development and twelve-factor deployments.
type envManager struct {
	lookup func(string) (string, bool)
}

// NewEnvManager creates a SecretManager backed by os.LookupEnv
func NewEnvManager() ports.SecretManager {
	return &envManager{lookup: os.LookupEnv}
}

func (m *envManager) GetSecret(_ context.Context, path string) (*ports.Secret, error) {
	value, ok := m.lookup(path)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret %s: environment variable not set", path)
	}
	return &ports.Secret{Value: value, Version: "env"}, nil
}

// fileManager reads secrets from files under root, e.g. mounted Kubernetes
// or Docker secrets. A file may hold plain text or {"value": "..."} JSON.
type fileManager struct {
	root   string
	logger *zap.Logger
}

// NewFileManager creates a SecretManager reading files below root
func NewFileManager(root string, logger *zap.Logger) ports.SecretManager {
	return &fileManager{root: root, logger: logger}
}

func (m *fileManager) GetSecret(_ context.Context, path string) (*ports.Secret, error) {
	full := filepath.Join(m.root, filepath.Clean("/"+path))

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", path)
		}
		return nil, fmt.Errorf("read secret %s: %w", path, err)
	}

	var doc struct {
		Tags      map[string]string `json:"tags"`
		Value     string            `json:"value"`
		Version   string            `json:"version"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &doc); err == nil && doc.Value != "" {
		return &ports.Secret{Value: doc.Value, Version: doc.Version, CreatedAt: doc.CreatedAt, Metadata: doc.Tags}, nil
	}

	m.logger.Debug("read plain text secret file", zap.String("path", path))
	return &ports.Secret{Value: strings.TrimSpace(string(data)), Version: "file"}, nil
}
