package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// AWSConfig configures the AWS Secrets Manager provider
type AWSConfig struct {
	Region   string
	Profile  string // shared config profile for local development
	Endpoint string // custom endpoint, e.g. LocalStack

	// extra SDK options, used by tests to inject credentials
	loadOptions []func(*config.LoadOptions) error
}

type awsManager struct {
	client *secretsmanager.Client
	logger *zap.Logger
}

// NewAWSManager creates a SecretManager backed by AWS Secrets Manager.
// Credentials come from the default chain (IAM role in production).
func NewAWSManager(ctx context.Context, cfg AWSConfig, logger *zap.Logger) (ports.SecretManager, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	opts = append(opts, cfg.loadOptions...)

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("aws secrets manager initialized", zap.String("region", cfg.Region))

	return &awsManager{
		client: secretsmanager.NewFromConfig(awsCfg, clientOpts...),
		logger: logger,
	}, nil
}

// GetSecret reads the current version of a secret by name or ARN
func (m *awsManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	start := time.Now()
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		m.logger.Error("aws secret lookup failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("get secret %s: %w", path, err)
	}

	secret := &ports.Secret{
		Value:    aws.ToString(out.SecretString),
		Version:  aws.ToString(out.VersionId),
		Metadata: map[string]string{},
	}
	if out.CreatedDate != nil {
		secret.CreatedAt = out.CreatedDate.UTC().Format(time.RFC3339)
	}
	if out.ARN != nil {
		secret.Metadata["arn"] = *out.ARN
	}
	if out.Name != nil {
		secret.Metadata["name"] = *out.Name
	}

	m.logger.Debug("aws secret retrieved",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)))
	return secret, nil
}
