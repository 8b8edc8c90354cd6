package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"go.uber.org/zap"
)

type gcpManager struct {
	client    *secretmanager.Client
	projectID string
	logger    *zap.Logger
}

// NewGCPManager creates a SecretManager backed by Google Secret Manager using
// application default credentials. Call the returned close func on shutdown.
func NewGCPManager(ctx context.Context, projectID string, logger *zap.Logger) (ports.SecretManager, func() error, error) {
	if projectID == "" {
		return nil, nil, fmt.Errorf("gcp project id is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create gcp secret manager client: %w", err)
	}

	logger.Info("gcp secret manager initialized", zap.String("project_id", projectID))
	return &gcpManager{client: client, projectID: projectID, logger: logger}, client.Close, nil
}

func (m *gcpManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	name := gcpSecretName(m.projectID, path)

	resp, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		m.logger.Error("gcp secret lookup failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("access secret %s: %w", name, err)
	}

	return &ports.Secret{
		Value:    string(resp.GetPayload().GetData()),
		Version:  resp.GetName()[strings.LastIndex(resp.GetName(), "/")+1:],
		Metadata: map[string]string{"name": resp.GetName()},
	}, nil
}

// gcpSecretName expands a short secret id to its latest version resource name
func gcpSecretName(projectID, path string) string {
	if strings.HasPrefix(path, "projects/") {
		return path
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, path)
}
